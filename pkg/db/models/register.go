package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// OpenRegisterConstraint allows one open drawer per location.
// OpenRegisterColumn is how sqlite names the same violation.
const (
	OpenRegisterConstraint = "register_sessions_one_open_per_location"
	OpenRegisterColumn     = "register_sessions.location_id"
)

// RegisterSession is one cash drawer shift from opening count to closing count.
type RegisterSession struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	LocationID        uuid.UUID            `gorm:"column:location_id;type:uuid;not null;uniqueIndex:register_sessions_one_open_per_location,where:status = 'open'"`
	OpenedBy          uuid.UUID            `gorm:"column:opened_by;type:uuid;not null"`
	ClosedBy          *uuid.UUID           `gorm:"column:closed_by;type:uuid"`
	OpeningCashCents  int                  `gorm:"column:opening_cash_cents;not null"`
	ExpectedCashCents *int                 `gorm:"column:expected_cash_cents"`
	CountedCashCents  *int                 `gorm:"column:counted_cash_cents"`
	DifferenceCents   *int                 `gorm:"column:difference_cents"`
	Status            enums.RegisterStatus `gorm:"column:status;type:text;not null"`
	Notes             *string              `gorm:"column:notes"`
	OpenedAt          time.Time            `gorm:"column:opened_at;not null"`
	ClosedAt          *time.Time           `gorm:"column:closed_at"`
}

func (r *RegisterSession) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}
