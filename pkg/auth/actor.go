package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// Actor is the authenticated operator behind a request.
type Actor struct {
	UserID     uuid.UUID
	Role       enums.UserRole
	LocationID *uuid.UUID
}

func (a Actor) IsAdmin() bool {
	return a.Role.IsAdmin()
}

// ActorFromClaims projects validated token claims onto an Actor.
func ActorFromClaims(c *AccessTokenClaims) Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{UserID: c.UserID, Role: c.Role, LocationID: c.LocationID}
}
