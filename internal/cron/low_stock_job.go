package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/internal/stock"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
	"github.com/angelmondragon/pos-backend/pkg/outbox/payloads"
)

const (
	lowStockDedupeScope = "low-stock"
	lowStockScanLimit   = 500
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type lowStockReader interface {
	LowStock(ctx context.Context, locationID *uuid.UUID, threshold, limit int) ([]stock.LevelRow, error)
}

// alertDeduper claims a key once per TTL and can hand it back on failure.
type alertDeduper interface {
	CheckAndMark(ctx context.Context, consumer, id string) (bool, error)
	Release(ctx context.Context, consumer, id string) error
}

type LowStockJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository lowStockReader
	Outbox     outbox.Emitter
	Deduper    alertDeduper
	Threshold  int
}

// NewLowStockJob emits low_stock_detected for every active product at or
// below the threshold, at most once per product, location and UTC day.
func NewLowStockJob(params LowStockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Repository == nil {
		return nil, errors.New("stock repository required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter required")
	}
	if params.Deduper == nil {
		return nil, errors.New("alert deduper required")
	}
	if params.Threshold < 0 {
		return nil, errors.New("threshold must be non-negative")
	}
	return &lowStockJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		outbox:    params.Outbox,
		dedupe:    params.Deduper,
		threshold: params.Threshold,
		now:       time.Now,
	}, nil
}

type lowStockJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      lowStockReader
	outbox    outbox.Emitter
	dedupe    alertDeduper
	threshold int
	now       func() time.Time
}

func (j *lowStockJob) Name() string { return "low-stock-scan" }

func (j *lowStockJob) Run(ctx context.Context) (int, error) {
	rows, err := j.repo.LowStock(ctx, nil, j.threshold, lowStockScanLimit)
	if err != nil {
		return 0, fmt.Errorf("scan low stock: %w", err)
	}

	now := j.now().UTC()
	emitted := 0
	var errs error
	for _, row := range rows {
		ok, err := j.alert(ctx, row, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("product %s at %s: %w", row.ProductID, row.LocationID, err))
			continue
		}
		if ok {
			emitted++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"threshold": j.threshold,
		"scanned":   len(rows),
		"emitted":   emitted,
	}), "low stock scan complete")
	return emitted, errs
}

// alert reports whether a new event was written.
func (j *lowStockJob) alert(ctx context.Context, row stock.LevelRow, now time.Time) (bool, error) {
	key := lowStockKey(row, now)
	already, err := j.dedupe.CheckAndMark(ctx, lowStockDedupeScope, key)
	if err != nil {
		return false, err
	}
	if already {
		return false, nil
	}

	err = j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLowStockDetected,
			AggregateType: enums.AggregateStockRecord,
			AggregateID:   row.ProductID,
			Actor:         &outbox.ActorRef{LocationID: &row.LocationID, Role: "system"},
			OccurredAt:    now,
			Data: payloads.LowStockDetectedEvent{
				ProductID:   row.ProductID,
				ProductName: row.ProductName,
				LocationID:  row.LocationID,
				Quantity:    row.Quantity,
				Threshold:   j.threshold,
				DetectedAt:  now,
			},
		})
	})
	if err != nil {
		if relErr := j.dedupe.Release(ctx, lowStockDedupeScope, key); relErr != nil {
			err = multierr.Append(err, relErr)
		}
		return false, err
	}
	return true, nil
}

func lowStockKey(row stock.LevelRow, now time.Time) string {
	return fmt.Sprintf("%s:%s:%s", row.ProductID, row.LocationID, now.Format("20060102"))
}
