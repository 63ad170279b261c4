package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Category struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// Product is the catalog entry; prices are tax-exclusive cents.
type Product struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Name           string     `gorm:"column:name;not null"`
	CategoryID     *uuid.UUID `gorm:"column:category_id;type:uuid"`
	SalePriceCents *int       `gorm:"column:sale_price_cents"`
	CostPriceCents *int       `gorm:"column:cost_price_cents"`
	IsActive       bool       `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	Barcodes []Barcode `gorm:"foreignKey:ProductID"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// EffectivePriceCents is sale price, else cost price, else zero.
func (p Product) EffectivePriceCents() int {
	switch {
	case p.SalePriceCents != nil:
		return *p.SalePriceCents
	case p.CostPriceCents != nil:
		return *p.CostPriceCents
	default:
		return 0
	}
}

// Barcode maps a scannable code to a product. One code per product is primary.
type Barcode struct {
	Code      string    `gorm:"column:code;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	IsPrimary bool      `gorm:"column:is_primary;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
