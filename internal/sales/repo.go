package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/pagination"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) CreateSale(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Omit("Items").Create(sale).Error
}

func (r *Repository) CreateItems(ctx context.Context, items []models.SaleItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *Repository) LocationExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Location{}).Where("id = ? AND is_active = ?", id, true).Count(&count).Error
	return count > 0, err
}

func (r *Repository) FindByTicket(ctx context.Context, ticket string) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Where("ticket_number = ?", ticket).
		First(&sale).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// List returns up to limit sales newest first, optionally restricted to one actor.
func (r *Repository) List(ctx context.Context, actorID *uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Sale, error) {
	query := r.db.WithContext(ctx).Model(&models.Sale{})
	if actorID != nil {
		query = query.Where("actor_id = ?", *actorID)
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Sale
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkVoided flips a completed sale to voided. It reports false when the sale
// is not in the completed state, so only one of two racing voids wins.
func (r *Repository) MarkVoided(ctx context.Context, saleID, actorID uuid.UUID, reason *string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ? AND status = ?", saleID, enums.SaleStatusCompleted).
		Updates(map[string]any{
			"status":      enums.SaleStatusVoided,
			"voided_at":   at,
			"voided_by":   actorID,
			"void_reason": reason,
			"updated_at":  at,
		})
	return res.RowsAffected == 1, res.Error
}

// reportFilter scopes the report queries to [from, to) and optionally one location.
type reportFilter struct {
	from       time.Time
	to         time.Time
	locationID *uuid.UUID
}

func (r *Repository) scoped(ctx context.Context, f reportFilter) *gorm.DB {
	query := r.db.WithContext(ctx).
		Where("sales.created_at >= ? AND sales.created_at < ?", f.from, f.to)
	if f.locationID != nil {
		query = query.Where("sales.location_id = ?", *f.locationID)
	}
	return query
}

type totalsRow struct {
	Status        enums.SaleStatus
	PaymentMethod enums.PaymentMethod
	SaleCount     int64
	SubtotalCents int64
	TaxCents      int64
	TotalCents    int64
}

// Totals sums sales per status and payment method.
func (r *Repository) Totals(ctx context.Context, f reportFilter) ([]totalsRow, error) {
	var rows []totalsRow
	err := r.scoped(ctx, f).
		Model(&models.Sale{}).
		Select("sales.status, sales.payment_method, COUNT(*) AS sale_count, " +
			"COALESCE(SUM(sales.subtotal_cents), 0) AS subtotal_cents, " +
			"COALESCE(SUM(sales.tax_cents), 0) AS tax_cents, " +
			"COALESCE(SUM(sales.total_cents), 0) AS total_cents").
		Group("sales.status, sales.payment_method").
		Order("sales.status").
		Order("sales.payment_method").
		Scan(&rows).Error
	return rows, err
}

type productRow struct {
	ProductID    uuid.UUID
	ProductName  string
	Quantity     int64
	RevenueCents int64
}

// TopProducts ranks products of completed sales by revenue.
func (r *Repository) TopProducts(ctx context.Context, f reportFilter, limit int) ([]productRow, error) {
	var rows []productRow
	err := r.scoped(ctx, f).
		Table("sale_items").
		Select("sale_items.product_id, MAX(sale_items.product_name) AS product_name, " +
			"SUM(sale_items.quantity) AS quantity, SUM(sale_items.line_total_cents) AS revenue_cents").
		Joins("JOIN sales ON sales.id = sale_items.sale_id").
		Where("sales.status = ?", enums.SaleStatusCompleted).
		Group("sale_items.product_id").
		Order("revenue_cents DESC").
		Order("sale_items.product_id").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
