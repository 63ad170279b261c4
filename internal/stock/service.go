package stock

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/auth"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
	"github.com/angelmondragon/pos-backend/pkg/outbox/payloads"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
	maxReasonLength  = 255
)

// Service is the inventory surface exposed to the API.
type Service interface {
	Adjust(ctx context.Context, actor auth.Actor, input AdjustInput) (*AdjustResult, error)
	ListLevels(ctx context.Context, locationID uuid.UUID, limit int) ([]Level, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	LowStock(ctx context.Context, locationID *uuid.UUID, threshold int) ([]Level, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	DB               txRunner
	Repo             *Repository
	Ledger           *Ledger
	Outbox           outbox.Emitter
	Logger           *logger.Logger
	DefaultThreshold int
}

type service struct {
	tx        txRunner
	repo      *Repository
	ledger    *Ledger
	outbox    outbox.Emitter
	logg      *logger.Logger
	threshold int
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Repo == nil || params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stock repository and ledger required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	threshold := params.DefaultThreshold
	if threshold < 0 {
		threshold = 0
	}
	return &service{
		tx:        params.DB,
		repo:      params.Repo,
		ledger:    params.Ledger,
		outbox:    params.Outbox,
		logg:      logg,
		threshold: threshold,
	}, nil
}

// Adjust applies a signed delta. Positive deltas restock (creating the record
// if needed); negative deltas fail with INSUFFICIENT_STOCK rather than go below zero.
func (s *service) Adjust(ctx context.Context, actor auth.Actor, input AdjustInput) (*AdjustResult, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "inventory adjustments require an admin")
	}
	if input.ProductID == uuid.Nil || input.LocationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id and location_id are required")
	}
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	note := strings.TrimSpace(input.Reason)
	if len(note) > maxReasonLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is too long")
	}

	var newQty int
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if ok, err := repo.ProductExists(ctx, input.ProductID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check product")
		} else if !ok {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "product %s not found", input.ProductID)
		}
		if ok, err := repo.LocationExists(ctx, input.LocationID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check location")
		} else if !ok {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "location %s not found", input.LocationID)
		}

		ledger := s.ledger.WithTx(tx)
		reason := enums.MovementReasonRestock
		var err error
		if input.Delta > 0 {
			newQty, err = ledger.Increment(ctx, input.ProductID, input.LocationID, input.Delta)
		} else {
			reason = enums.MovementReasonAdjustment
			newQty, err = ledger.Decrement(ctx, input.ProductID, input.LocationID, -input.Delta)
		}
		if err != nil {
			return err
		}

		actorID := actor.UserID
		movement := &models.StockMovement{
			ProductID:     input.ProductID,
			LocationID:    input.LocationID,
			Delta:         input.Delta,
			QuantityAfter: newQty,
			Reason:        reason,
			ActorID:       &actorID,
		}
		if note != "" {
			movement.Note = &note
		}
		if err := ledger.RecordMovement(ctx, movement); err != nil {
			return err
		}

		if s.outbox == nil {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockAdjusted,
			AggregateType: enums.AggregateStockRecord,
			AggregateID:   movement.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, LocationID: &input.LocationID, Role: string(actor.Role)},
			Data: payloads.StockAdjustedEvent{
				ProductID:   input.ProductID,
				LocationID:  input.LocationID,
				Delta:       input.Delta,
				NewQuantity: newQty,
				Reason:      reason,
				Note:        note,
			},
		})
	})
	if err != nil {
		return nil, asServiceError(err, "adjust stock")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"product_id":   input.ProductID.String(),
		"location_id":  input.LocationID.String(),
		"delta":        input.Delta,
		"new_quantity": newQty,
	})
	s.logg.Info(logCtx, "stock adjusted")
	return &AdjustResult{NewQuantity: newQty}, nil
}

func (s *service) ListLevels(ctx context.Context, locationID uuid.UUID, limit int) ([]Level, error) {
	if locationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location_id is required")
	}
	rows, err := s.repo.ListByLocation(ctx, locationID, clampLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list stock levels")
	}
	return levelsFromRows(rows), nil
}

func (s *service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	filter.Limit = clampLimit(filter.Limit)
	rows, err := s.repo.ListMovements(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list stock movements")
	}
	out := make([]Movement, 0, len(rows))
	for _, row := range rows {
		out = append(out, movementFromModel(row))
	}
	return out, nil
}

// LowStock uses the configured threshold when threshold is negative.
func (s *service) LowStock(ctx context.Context, locationID *uuid.UUID, threshold int) ([]Level, error) {
	if threshold < 0 {
		threshold = s.threshold
	}
	rows, err := s.repo.LowStock(ctx, locationID, threshold, MaxListLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list low stock")
	}
	return levelsFromRows(rows), nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func asServiceError(err error, action string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
}
