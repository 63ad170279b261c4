package stock

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// AdjustInput is a manual correction of one product's stock at one location.
type AdjustInput struct {
	ProductID  uuid.UUID
	LocationID uuid.UUID
	Delta      int
	Reason     string
}

type AdjustResult struct {
	NewQuantity int `json:"new_quantity"`
}

type Level struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	LocationID  uuid.UUID `json:"location_id"`
	Quantity    int       `json:"quantity"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Movement struct {
	ID            uuid.UUID            `json:"id"`
	ProductID     uuid.UUID            `json:"product_id"`
	LocationID    uuid.UUID            `json:"location_id"`
	Delta         int                  `json:"delta"`
	QuantityAfter int                  `json:"quantity_after"`
	Reason        enums.MovementReason `json:"reason"`
	ReferenceID   *uuid.UUID           `json:"reference_id,omitempty"`
	ActorID       *uuid.UUID           `json:"actor_id,omitempty"`
	Note          *string              `json:"note,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

func levelsFromRows(rows []LevelRow) []Level {
	out := make([]Level, 0, len(rows))
	for _, row := range rows {
		out = append(out, Level(row))
	}
	return out
}

func movementFromModel(m models.StockMovement) Movement {
	return Movement{
		ID:            m.ID,
		ProductID:     m.ProductID,
		LocationID:    m.LocationID,
		Delta:         m.Delta,
		QuantityAfter: m.QuantityAfter,
		Reason:        m.Reason,
		ReferenceID:   m.ReferenceID,
		ActorID:       m.ActorID,
		Note:          m.Note,
		CreatedAt:     m.CreatedAt,
	}
}
