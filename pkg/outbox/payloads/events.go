package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// SaleCompletedEvent is queued with every committed sale.
type SaleCompletedEvent struct {
	SaleID        uuid.UUID           `json:"sale_id"`
	TicketNumber  string              `json:"ticket_number"`
	ActorID       uuid.UUID           `json:"actor_id"`
	LocationID    uuid.UUID           `json:"location_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	SubtotalCents int                 `json:"subtotal_cents"`
	TaxCents      int                 `json:"tax_cents"`
	TotalCents    int                 `json:"total_cents"`
	TaxRateBps    int                 `json:"tax_rate_bps"`
	Lines         []SaleLine          `json:"lines"`
	CompletedAt   time.Time           `json:"completed_at"`
}

// SaleLine snapshots one sold line.
type SaleLine struct {
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Barcode        *string   `json:"barcode,omitempty"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
	LineTotalCents int       `json:"line_total_cents"`
}

// SaleVoidedEvent is queued when a committed sale is voided and its stock
// returned.
type SaleVoidedEvent struct {
	SaleID        uuid.UUID           `json:"sale_id"`
	TicketNumber  string              `json:"ticket_number"`
	LocationID    uuid.UUID           `json:"location_id"`
	VoidedBy      uuid.UUID           `json:"voided_by"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalCents    int                 `json:"total_cents"`
	Reason        string              `json:"reason,omitempty"`
	Lines         []SaleLine          `json:"lines"`
	VoidedAt      time.Time           `json:"voided_at"`
}

// StockAdjustedEvent reports a manual inventory correction.
type StockAdjustedEvent struct {
	ProductID   uuid.UUID            `json:"product_id"`
	LocationID  uuid.UUID            `json:"location_id"`
	Delta       int                  `json:"delta"`
	NewQuantity int                  `json:"new_quantity"`
	Reason      enums.MovementReason `json:"reason"`
	Note        string               `json:"note,omitempty"`
}

// LowStockDetectedEvent is emitted by the low stock scan.
type LowStockDetectedEvent struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	LocationID  uuid.UUID `json:"location_id"`
	Quantity    int       `json:"quantity"`
	Threshold   int       `json:"threshold"`
	DetectedAt  time.Time `json:"detected_at"`
}
