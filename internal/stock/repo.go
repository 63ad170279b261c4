package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
)

// LevelRow is a stock record joined with its product name.
type LevelRow struct {
	ProductID   uuid.UUID
	ProductName string
	LocationID  uuid.UUID
	Quantity    int
	UpdatedAt   time.Time
}

// MovementFilter narrows the movement audit trail.
type MovementFilter struct {
	ProductID  *uuid.UUID
	LocationID *uuid.UUID
	Limit      int
}

// Repository serves the read side of inventory.
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

func (r *Repository) ProductExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *Repository) LocationExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Location{}).Where("id = ? AND is_active = ?", id, true).Count(&count).Error
	return count > 0, err
}

func (r *Repository) levels() *gorm.DB {
	return r.db.Table("stock_records").
		Select("stock_records.product_id, products.name AS product_name, stock_records.location_id, stock_records.quantity, stock_records.updated_at").
		Joins("JOIN products ON products.id = stock_records.product_id")
}

func (r *Repository) ListByLocation(ctx context.Context, locationID uuid.UUID, limit int) ([]LevelRow, error) {
	var rows []LevelRow
	err := r.levels().WithContext(ctx).
		Where("stock_records.location_id = ?", locationID).
		Order("products.name ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// LowStock lists active products at or below threshold, lowest first.
// A nil locationID scans every location.
func (r *Repository) LowStock(ctx context.Context, locationID *uuid.UUID, threshold, limit int) ([]LevelRow, error) {
	query := r.levels().WithContext(ctx).
		Where("stock_records.quantity <= ? AND products.is_active = ?", threshold, true)
	if locationID != nil {
		query = query.Where("stock_records.location_id = ?", *locationID)
	}
	var rows []LevelRow
	err := query.
		Order("stock_records.quantity ASC").
		Order("products.name ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]models.StockMovement, error) {
	query := r.db.WithContext(ctx).Model(&models.StockMovement{})
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.LocationID != nil {
		query = query.Where("location_id = ?", *filter.LocationID)
	}
	var rows []models.StockMovement
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Find(&rows).Error
	return rows, err
}
