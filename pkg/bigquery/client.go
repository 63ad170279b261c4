// Package bigquery wraps the BigQuery streaming API for the analytics worker.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

const probeTimeout = 10 * time.Second

var (
	ErrNotProvisioned = errors.New("bigquery resource not provisioned")

	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// Client streams rows into tables of one dataset. Only tables known at
// construction time accept inserts.
type Client struct {
	bq      *bigquery.Client
	dataset *bigquery.Dataset
	tables  map[string]*bigquery.Table
}

// NewClient connects and probes the dataset and the sale lines table. The
// analytics schema is provisioned out of band, so a missing table is fatal.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	datasetID := strings.TrimSpace(cfg.Dataset)
	names := tableNames(cfg)
	switch {
	case project == "":
		return nil, errProjectIDRequired
	case datasetID == "":
		return nil, errDatasetRequired
	case len(names) == 0:
		return nil, errTableNameRequired
	}

	bq, err := bigquery.NewClient(ctx, project, credentialOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	dataset := bq.Dataset(datasetID)
	c := &Client{bq: bq, dataset: dataset, tables: make(map[string]*bigquery.Table, len(names))}
	for _, name := range names {
		c.tables[name] = dataset.Table(name)
	}

	if err := c.Ping(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"dataset": datasetID, "tables": names}), "bigquery ready")
	}
	return c, nil
}

func credentialOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func tableNames(cfg config.BigQueryConfig) []string {
	var names []string
	if name := strings.TrimSpace(cfg.SaleLinesTable); name != "" {
		names = append(names, name)
	}
	return names
}

// Ping checks that the dataset and every known table still exist.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return probeError("dataset "+c.dataset.DatasetID, err)
	}
	for name, table := range c.tables {
		if _, err := table.Metadata(ctx); err != nil {
			return probeError("table "+name, err)
		}
	}
	return nil
}

func probeError(what string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%s: %w", what, ErrNotProvisioned)
	}
	return fmt.Errorf("probe %s: %w", what, err)
}

// InsertRows streams rows. Values implementing bigquery.ValueSaver control
// their own insert ids.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.bq == nil {
		return errClientNotInitialized
	}
	target, ok := c.tables[strings.TrimSpace(table)]
	if !ok {
		return fmt.Errorf("%w: %q", errTableNameRequired, table)
	}
	if len(rows) == 0 {
		return nil
	}
	return target.Inserter().Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}
