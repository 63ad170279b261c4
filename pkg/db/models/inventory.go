package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// Location is a stock-holding branch or register.
type Location struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Code      string    `gorm:"column:code;not null;uniqueIndex"`
	Name      string    `gorm:"column:name;not null"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (l *Location) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}

// StockRecord is the on-hand quantity for one product at one location.
type StockRecord struct {
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	LocationID uuid.UUID `gorm:"column:location_id;type:uuid;primaryKey"`
	Quantity   int       `gorm:"column:quantity;not null;default:0;check:quantity >= 0"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// StockMovement is the append-only audit row written with every ledger change.
type StockMovement struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID            `gorm:"column:product_id;type:uuid;not null;index:idx_stock_movements_product_location"`
	LocationID    uuid.UUID            `gorm:"column:location_id;type:uuid;not null;index:idx_stock_movements_product_location"`
	Delta         int                  `gorm:"column:delta;not null"`
	QuantityAfter int                  `gorm:"column:quantity_after;not null"`
	Reason        enums.MovementReason `gorm:"column:reason;type:text;not null"`
	ReferenceID   *uuid.UUID           `gorm:"column:reference_id;type:uuid"`
	ActorID       *uuid.UUID           `gorm:"column:actor_id;type:uuid"`
	Note          *string              `gorm:"column:note"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}
