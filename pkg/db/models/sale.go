package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// TicketNumberConstraint is the unique index guarding sales.ticket_number.
// TicketNumberColumn is how sqlite names the same violation.
const (
	TicketNumberConstraint = "sales_ticket_number_key"
	TicketNumberColumn     = "sales.ticket_number"
)

// Sale is written once per committed register transaction.
type Sale struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ActorID       uuid.UUID           `gorm:"column:actor_id;type:uuid;not null;index"`
	LocationID    uuid.UUID           `gorm:"column:location_id;type:uuid;not null"`
	TicketNumber  string              `gorm:"column:ticket_number;not null;uniqueIndex:sales_ticket_number_key"`
	SubtotalCents int                 `gorm:"column:subtotal_cents;not null"`
	TaxCents      int                 `gorm:"column:tax_cents;not null"`
	TotalCents    int                 `gorm:"column:total_cents;not null"`
	TaxRateBps    int                 `gorm:"column:tax_rate_bps;not null"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	Status        enums.SaleStatus    `gorm:"column:status;type:text;not null"`
	VoidedAt      *time.Time          `gorm:"column:voided_at"`
	VoidedBy      *uuid.UUID          `gorm:"column:voided_by;type:uuid"`
	VoidReason    *string             `gorm:"column:void_reason"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Items []SaleItem `gorm:"foreignKey:SaleID"`
}

func (s *Sale) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// SaleItem snapshots product name and unit price at commit time.
type SaleItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SaleID         uuid.UUID `gorm:"column:sale_id;type:uuid;not null;index"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductName    string    `gorm:"column:product_name;not null"`
	Barcode        *string   `gorm:"column:barcode"`
	Quantity       int       `gorm:"column:quantity;not null"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null"`
	LineTotalCents int       `gorm:"column:line_total_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (i *SaleItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}
