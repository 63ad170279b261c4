package sales

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/pkg/auth"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/money"
)

const (
	DefaultReportWindow = 24 * time.Hour
	MaxReportWindow     = 366 * 24 * time.Hour
	TopProductsLimit    = 10
)

// ReportParams bounds a sales report to [From, To). A zero To means now and
// a zero From means DefaultReportWindow before To.
type ReportParams struct {
	From       time.Time
	To         time.Time
	LocationID *uuid.UUID
}

// Report summarises the sales of a period.
type Report struct {
	From               time.Time          `json:"from"`
	To                 time.Time          `json:"to"`
	LocationID         *uuid.UUID         `json:"location_id,omitempty"`
	CompletedCount     int                `json:"completed_count"`
	VoidedCount        int                `json:"voided_count"`
	Subtotal           string             `json:"subtotal"`
	Tax                string             `json:"tax"`
	Total              string             `json:"total"`
	AverageTicket      string             `json:"average_ticket"`
	Voided             string             `json:"voided"`
	SubtotalCents      int                `json:"subtotal_cents"`
	TaxCents           int                `json:"tax_cents"`
	TotalCents         int                `json:"total_cents"`
	AverageTicketCents int                `json:"average_ticket_cents"`
	VoidedCents        int                `json:"voided_cents"`
	ByPaymentMethod    []PaymentTotal     `json:"by_payment_method"`
	TopProducts        []ProductSalesLine `json:"top_products"`
}

// PaymentTotal is the completed revenue taken with one payment method.
type PaymentTotal struct {
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Count         int                 `json:"count"`
	Total         string              `json:"total"`
	TotalCents    int                 `json:"total_cents"`
}

// ProductSalesLine is one row of the best sellers ranking.
type ProductSalesLine struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name"`
	Quantity     int       `json:"quantity"`
	Revenue      string    `json:"revenue"`
	RevenueCents int       `json:"revenue_cents"`
}

func (s *service) Report(ctx context.Context, actor auth.Actor, params ReportParams) (*Report, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can read sales reports")
	}
	filter, err := s.reportWindow(params)
	if err != nil {
		return nil, err
	}

	totals, err := s.repo.Totals(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum sales")
	}
	products, err := s.repo.TopProducts(ctx, filter, TopProductsLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rank products")
	}

	report := &Report{
		From:            filter.from,
		To:              filter.to,
		LocationID:      filter.locationID,
		ByPaymentMethod: []PaymentTotal{},
		TopProducts:     make([]ProductSalesLine, 0, len(products)),
	}
	for _, row := range totals {
		if row.Status == enums.SaleStatusVoided {
			report.VoidedCount += int(row.SaleCount)
			report.VoidedCents += int(row.TotalCents)
			continue
		}
		report.CompletedCount += int(row.SaleCount)
		report.SubtotalCents += int(row.SubtotalCents)
		report.TaxCents += int(row.TaxCents)
		report.TotalCents += int(row.TotalCents)
		report.ByPaymentMethod = append(report.ByPaymentMethod, PaymentTotal{
			PaymentMethod: row.PaymentMethod,
			Count:         int(row.SaleCount),
			Total:         money.Format(int(row.TotalCents)),
			TotalCents:    int(row.TotalCents),
		})
	}
	report.AverageTicketCents = money.Average(report.TotalCents, report.CompletedCount)
	report.Subtotal = money.Format(report.SubtotalCents)
	report.Tax = money.Format(report.TaxCents)
	report.Total = money.Format(report.TotalCents)
	report.AverageTicket = money.Format(report.AverageTicketCents)
	report.Voided = money.Format(report.VoidedCents)

	for _, row := range products {
		report.TopProducts = append(report.TopProducts, ProductSalesLine{
			ProductID:    row.ProductID,
			ProductName:  row.ProductName,
			Quantity:     int(row.Quantity),
			Revenue:      money.Format(int(row.RevenueCents)),
			RevenueCents: int(row.RevenueCents),
		})
	}
	return report, nil
}

func (s *service) reportWindow(params ReportParams) (reportFilter, error) {
	to := params.To.UTC()
	if params.To.IsZero() {
		to = s.now().UTC()
	}
	from := params.From.UTC()
	if params.From.IsZero() {
		from = to.Add(-DefaultReportWindow)
	}
	switch {
	case !from.Before(to):
		return reportFilter{}, pkgerrors.New(pkgerrors.CodeValidation, "from must be before to")
	case to.Sub(from) > MaxReportWindow:
		return reportFilter{}, pkgerrors.New(pkgerrors.CodeValidation, "report window cannot exceed 366 days")
	}
	filter := reportFilter{from: from, to: to}
	if params.LocationID != nil && *params.LocationID != uuid.Nil {
		id := *params.LocationID
		filter.locationID = &id
	}
	return filter, nil
}
