package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pkgbigquery "github.com/angelmondragon/pos-backend/pkg/bigquery"
)

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// Writer streams sale line rows into BigQuery.
type Writer struct {
	client tableInserter
	table  string
	retry  pkgbigquery.RetryPolicy
}

func NewWriter(client tableInserter, table string, retry pkgbigquery.RetryPolicy) (*Writer, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errors.New("sale lines table is required")
	}
	return &Writer{client: client, table: table, retry: retry}, nil
}

// InsertSaleLines writes rows, retrying transient BigQuery failures with backoff.
func (w *Writer) InsertSaleLines(ctx context.Context, rows []SaleLineRow) error {
	if len(rows) == 0 {
		return nil
	}
	values := make([]any, len(rows))
	for i := range rows {
		values[i] = &rows[i]
	}

	err := pkgbigquery.Retry(ctx, w.retry, func(ctx context.Context) error {
		return w.client.InsertRows(ctx, w.table, values)
	})
	if err != nil {
		return fmt.Errorf("insert %d rows into %s: %w", len(values), w.table, err)
	}
	return nil
}
