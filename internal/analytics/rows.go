package analytics

import (
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/angelmondragon/pos-backend/pkg/outbox/payloads"
)

// SaleLineRow mirrors the sale_lines BigQuery schema. One row per sold line.
type SaleLineRow struct {
	EventID        string              `bigquery:"event_id"`
	SaleID         string              `bigquery:"sale_id"`
	TicketNumber   string              `bigquery:"ticket_number"`
	LineNumber     int64               `bigquery:"line_number"`
	LocationID     string              `bigquery:"location_id"`
	ActorID        string              `bigquery:"actor_id"`
	PaymentMethod  string              `bigquery:"payment_method"`
	ProductID      string              `bigquery:"product_id"`
	ProductName    string              `bigquery:"product_name"`
	Barcode        bigquery.NullString `bigquery:"barcode"`
	Quantity       int64               `bigquery:"quantity"`
	UnitPriceCents int64               `bigquery:"unit_price_cents"`
	LineTotalCents int64               `bigquery:"line_total_cents"`
	SaleTotalCents int64               `bigquery:"sale_total_cents"`
	TaxRateBps     int64               `bigquery:"tax_rate_bps"`
	CompletedAt    time.Time           `bigquery:"completed_at"`
}

// InsertID keys streaming inserts so a redelivered event does not duplicate lines.
func (r SaleLineRow) InsertID() string {
	return fmt.Sprintf("%s:%d", r.EventID, r.LineNumber)
}

// Save implements bigquery.ValueSaver.
func (r *SaleLineRow) Save() (map[string]bigquery.Value, string, error) {
	row := map[string]bigquery.Value{
		"event_id":         r.EventID,
		"sale_id":          r.SaleID,
		"ticket_number":    r.TicketNumber,
		"line_number":      r.LineNumber,
		"location_id":      r.LocationID,
		"actor_id":         r.ActorID,
		"payment_method":   r.PaymentMethod,
		"product_id":       r.ProductID,
		"product_name":     r.ProductName,
		"barcode":          r.Barcode,
		"quantity":         r.Quantity,
		"unit_price_cents": r.UnitPriceCents,
		"line_total_cents": r.LineTotalCents,
		"sale_total_cents": r.SaleTotalCents,
		"tax_rate_bps":     r.TaxRateBps,
		"completed_at":     r.CompletedAt,
	}
	return row, r.InsertID(), nil
}

// SaleLineRows flattens a completed sale. completedAt falls back to occurredAt.
func SaleLineRows(eventID string, occurredAt time.Time, sale payloads.SaleCompletedEvent) []SaleLineRow {
	completedAt := sale.CompletedAt
	if completedAt.IsZero() {
		completedAt = occurredAt
	}
	rows := make([]SaleLineRow, 0, len(sale.Lines))
	for i, line := range sale.Lines {
		row := SaleLineRow{
			EventID:        eventID,
			SaleID:         sale.SaleID.String(),
			TicketNumber:   sale.TicketNumber,
			LineNumber:     int64(i + 1),
			LocationID:     sale.LocationID.String(),
			ActorID:        sale.ActorID.String(),
			PaymentMethod:  string(sale.PaymentMethod),
			ProductID:      line.ProductID.String(),
			ProductName:    line.ProductName,
			Quantity:       int64(line.Quantity),
			UnitPriceCents: int64(line.UnitPriceCents),
			LineTotalCents: int64(line.LineTotalCents),
			SaleTotalCents: int64(sale.TotalCents),
			TaxRateBps:     int64(sale.TaxRateBps),
			CompletedAt:    completedAt.UTC(),
		}
		if line.Barcode != nil {
			row.Barcode = bigquery.NullString{StringVal: *line.Barcode, Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}
