package sales

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/money"
)

// LineInput identifies a product by id or by a scanned barcode.
type LineInput struct {
	ProductID *uuid.UUID
	Barcode   string
	Quantity  int
}

type CreateSaleInput struct {
	Lines         []LineInput
	PaymentMethod string
	LocationID    *uuid.UUID
}

// VoidInput carries the optional reason recorded with a void.
type VoidInput struct {
	Reason string
}

// Result is returned once the sale has committed.
type Result struct {
	SaleID        uuid.UUID
	TicketNumber  string
	SubtotalCents int
	TaxCents      int
	TotalCents    int
}

type ResultDTO struct {
	SaleID        uuid.UUID `json:"sale_id"`
	TicketNumber  string    `json:"ticket_number"`
	Total         string    `json:"total"`
	TotalCents    int       `json:"total_cents"`
	SubtotalCents int       `json:"subtotal_cents"`
	TaxCents      int       `json:"tax_cents"`
}

func (r Result) DTO() ResultDTO {
	return ResultDTO{
		SaleID:        r.SaleID,
		TicketNumber:  r.TicketNumber,
		Total:         money.Format(r.TotalCents),
		TotalCents:    r.TotalCents,
		SubtotalCents: r.SubtotalCents,
		TaxCents:      r.TaxCents,
	}
}

// SaleDTO is the receipt view of a committed sale.
type SaleDTO struct {
	ID            uuid.UUID           `json:"id"`
	TicketNumber  string              `json:"ticket_number"`
	ActorID       uuid.UUID           `json:"actor_id"`
	LocationID    uuid.UUID           `json:"location_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Status        enums.SaleStatus    `json:"status"`
	Subtotal      string              `json:"subtotal"`
	Tax           string              `json:"tax"`
	Total         string              `json:"total"`
	SubtotalCents int                 `json:"subtotal_cents"`
	TaxCents      int                 `json:"tax_cents"`
	TotalCents    int                 `json:"total_cents"`
	TaxRateBps    int                 `json:"tax_rate_bps"`
	CreatedAt     time.Time           `json:"created_at"`
	VoidedAt      *time.Time          `json:"voided_at,omitempty"`
	VoidedBy      *uuid.UUID          `json:"voided_by,omitempty"`
	VoidReason    *string             `json:"void_reason,omitempty"`
	Items         []SaleItemDTO       `json:"items,omitempty"`
}

type SaleItemDTO struct {
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Barcode        *string   `json:"barcode,omitempty"`
	Quantity       int       `json:"quantity"`
	UnitPrice      string    `json:"unit_price"`
	UnitPriceCents int       `json:"unit_price_cents"`
	LineTotal      string    `json:"line_total"`
	LineTotalCents int       `json:"line_total_cents"`
}

func saleFromModel(s models.Sale) SaleDTO {
	dto := SaleDTO{
		ID:            s.ID,
		TicketNumber:  s.TicketNumber,
		ActorID:       s.ActorID,
		LocationID:    s.LocationID,
		PaymentMethod: s.PaymentMethod,
		Status:        s.Status,
		Subtotal:      money.Format(s.SubtotalCents),
		Tax:           money.Format(s.TaxCents),
		Total:         money.Format(s.TotalCents),
		SubtotalCents: s.SubtotalCents,
		TaxCents:      s.TaxCents,
		TotalCents:    s.TotalCents,
		TaxRateBps:    s.TaxRateBps,
		CreatedAt:     s.CreatedAt,
		VoidedAt:      s.VoidedAt,
		VoidedBy:      s.VoidedBy,
		VoidReason:    s.VoidReason,
	}
	for _, item := range s.Items {
		dto.Items = append(dto.Items, SaleItemDTO{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Barcode:        item.Barcode,
			Quantity:       item.Quantity,
			UnitPrice:      money.Format(item.UnitPriceCents),
			UnitPriceCents: item.UnitPriceCents,
			LineTotal:      money.Format(item.LineTotalCents),
			LineTotalCents: item.LineTotalCents,
		})
	}
	return dto
}
