package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// EmailConstraint guards users.email; EmailColumn is the sqlite spelling.
const (
	EmailConstraint = "users_email_key"
	EmailColumn     = "users.email"
)

// User is a register operator.
type User struct {
	ID                uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Email             string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash      string         `gorm:"column:password_hash;not null"`
	FirstName         string         `gorm:"column:first_name;not null"`
	LastName          string         `gorm:"column:last_name;not null"`
	Role              enums.UserRole `gorm:"column:role;type:text;not null"`
	DefaultLocationID *uuid.UUID     `gorm:"column:default_location_id;type:uuid"`
	IsActive          bool           `gorm:"column:is_active;not null;default:true"`
	LastLoginAt       *time.Time     `gorm:"column:last_login_at"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	assignID(&u.ID)
	return nil
}
