package auth

import (
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID     uuid.UUID
	Role       enums.UserRole
	LocationID *uuid.UUID
	JTI        string
}

// AccessTokenClaims represents the typed JWT issued to register operators.
type AccessTokenClaims struct {
	UserID     uuid.UUID      `json:"user_id"`
	Role       enums.UserRole `json:"role"`
	LocationID *uuid.UUID     `json:"location_id,omitempty"`
	jwt.RegisteredClaims
}

func (c AccessTokenClaims) IsAdmin() bool {
	return c.Role.IsAdmin()
}
