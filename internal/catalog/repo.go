package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
)

// Repository reads products and their barcodes. It never writes.
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

// FindByBarcode matches the scanned code exactly against any barcode of an active product.
func (r *Repository) FindByBarcode(ctx context.Context, code string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Select("products.*").
		Preload("Barcodes").
		Joins("JOIN barcodes ON barcodes.product_id = products.id").
		Where("barcodes.code = ? AND products.is_active = ?", code, true).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByID loads an active product with its barcodes.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Barcodes").
		Where("id = ? AND is_active = ?", id, true).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Search matches active products by name substring or barcode prefix.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]models.Product, error) {
	needle := escapeLike(strings.ToLower(query))
	var products []models.Product
	err := r.db.WithContext(ctx).
		Preload("Barcodes").
		Where("products.is_active = ?", true).
		Where(
			r.db.Where(`lower(products.name) LIKE ? ESCAPE '\'`, "%"+needle+"%").
				Or(`EXISTS (SELECT 1 FROM barcodes b WHERE b.product_id = products.id AND b.code LIKE ? ESCAPE '\')`, needle+"%"),
		).
		Order("products.name ASC").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
