package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
)

// InsufficientDetails is attached to INSUFFICIENT_STOCK errors.
type InsufficientDetails struct {
	ProductID  uuid.UUID `json:"product_id"`
	LocationID uuid.UUID `json:"location_id"`
	Requested  int       `json:"requested"`
	Available  int       `json:"available"`
}

// Ledger owns every write to stock_records. Bind it to a caller's
// transaction with WithTx so quantity changes commit with the rest of the unit of work.
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	if tx == nil {
		return l
	}
	return &Ledger{db: tx, now: l.now}
}

// Decrement removes qty units only if at least qty are on hand. The check and
// the write are one statement, so concurrent sellers cannot drive quantity below zero.
func (l *Ledger) Decrement(ctx context.Context, productID, locationID uuid.UUID, qty int) (int, error) {
	if qty <= 0 {
		return 0, invalidQuantity(qty)
	}

	res := l.db.WithContext(ctx).
		Model(&models.StockRecord{}).
		Where("product_id = ? AND location_id = ? AND quantity >= ?", productID, locationID, qty).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity - ?", qty),
			"updated_at": l.now(),
		})
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "decrement stock")
	}
	if res.RowsAffected == 0 {
		available, err := l.Quantity(ctx, productID, locationID)
		if err != nil {
			return 0, err
		}
		return 0, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(InsufficientDetails{
				ProductID:  productID,
				LocationID: locationID,
				Requested:  qty,
				Available:  available,
			})
	}
	return l.Quantity(ctx, productID, locationID)
}

// Increment adds qty units, creating the record on first restock.
func (l *Ledger) Increment(ctx context.Context, productID, locationID uuid.UUID, qty int) (int, error) {
	if qty <= 0 {
		return 0, invalidQuantity(qty)
	}

	now := l.now()
	record := models.StockRecord{
		ProductID:  productID,
		LocationID: locationID,
		Quantity:   qty,
		UpdatedAt:  now,
	}
	err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product_id"}, {Name: "location_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":   gorm.Expr("stock_records.quantity + ?", qty),
				"updated_at": now,
			}),
		}).
		Create(&record).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment stock")
	}
	return l.Quantity(ctx, productID, locationID)
}

// Quantity reads the on-hand count. A missing record is zero.
func (l *Ledger) Quantity(ctx context.Context, productID, locationID uuid.UUID) (int, error) {
	var record models.StockRecord
	err := l.db.WithContext(ctx).
		Where("product_id = ? AND location_id = ?", productID, locationID).
		Take(&record).Error
	if err != nil {
		if db.IsNotFound(err) {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read stock")
	}
	return record.Quantity, nil
}

// RecordMovement appends an audit row.
func (l *Ledger) RecordMovement(ctx context.Context, movement *models.StockMovement) error {
	if err := l.db.WithContext(ctx).Create(movement).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record stock movement")
	}
	return nil
}

func invalidQuantity(qty int) error {
	return pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be positive, got %d", qty)
}
