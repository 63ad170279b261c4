package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/internal/users"
)

// LoginRequest captures the operator credentials sent to the login endpoint.
type LoginRequest struct {
	Email      string     `json:"email" validate:"required,email"`
	Password   string     `json:"password" validate:"required"`
	LocationID *uuid.UUID `json:"location_id,omitempty"`
}

// Identity is the result of checking credentials.
type Identity struct {
	ActorID uuid.UUID `json:"actor_id"`
	IsAdmin bool      `json:"is_admin"`
}

// LoginResponse contains the tokens and user produced by a successful login.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	LocationID   *uuid.UUID     `json:"location_id,omitempty"`
	User         *users.UserDTO `json:"user"`
}

// RegisterRequest creates a register operator account.
type RegisterRequest struct {
	FirstName         string     `json:"first_name" validate:"required"`
	LastName          string     `json:"last_name" validate:"required"`
	Email             string     `json:"email" validate:"required,email"`
	Password          string     `json:"password" validate:"required,min=8"`
	Role              string     `json:"role" validate:"required,oneof=admin cashier"`
	DefaultLocationID *uuid.UUID `json:"default_location_id,omitempty"`
}
