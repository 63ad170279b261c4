package register

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/money"
)

// OpenInput takes amounts as decimal strings, e.g. "500.00".
type OpenInput struct {
	LocationID  *uuid.UUID
	OpeningCash string
}

type CloseInput struct {
	CountedCash string
	Notes       string
}

// SessionDTO is a drawer session with amounts in cents and formatted.
type SessionDTO struct {
	ID                uuid.UUID            `json:"id"`
	LocationID        uuid.UUID            `json:"location_id"`
	OpenedBy          uuid.UUID            `json:"opened_by"`
	ClosedBy          *uuid.UUID           `json:"closed_by,omitempty"`
	Status            enums.RegisterStatus `json:"status"`
	OpeningCash       string               `json:"opening_cash"`
	OpeningCashCents  int                  `json:"opening_cash_cents"`
	ExpectedCash      *string              `json:"expected_cash,omitempty"`
	ExpectedCashCents *int                 `json:"expected_cash_cents,omitempty"`
	CountedCash       *string              `json:"counted_cash,omitempty"`
	CountedCashCents  *int                 `json:"counted_cash_cents,omitempty"`
	Difference        *string              `json:"difference,omitempty"`
	DifferenceCents   *int                 `json:"difference_cents,omitempty"`
	Notes             *string              `json:"notes,omitempty"`
	OpenedAt          time.Time            `json:"opened_at"`
	ClosedAt          *time.Time           `json:"closed_at,omitempty"`
}

// SessionReport adds the sales taken while the drawer was open. For an open
// session ExpectedCashCents is the running figure.
type SessionReport struct {
	Session           SessionDTO `json:"session"`
	SalesCount        int        `json:"sales_count"`
	SalesTotal        string     `json:"sales_total"`
	SalesTotalCents   int        `json:"sales_total_cents"`
	CashSalesCents    int        `json:"cash_sales_cents"`
	VoidedCount       int        `json:"voided_count"`
	ExpectedCash      string     `json:"expected_cash"`
	ExpectedCashCents int        `json:"expected_cash_cents"`
}

func formatted(cents *int) *string {
	if cents == nil {
		return nil
	}
	s := money.Format(*cents)
	return &s
}

func sessionFromModel(m models.RegisterSession) SessionDTO {
	return SessionDTO{
		ID:                m.ID,
		LocationID:        m.LocationID,
		OpenedBy:          m.OpenedBy,
		ClosedBy:          m.ClosedBy,
		Status:            m.Status,
		OpeningCash:       money.Format(m.OpeningCashCents),
		OpeningCashCents:  m.OpeningCashCents,
		ExpectedCash:      formatted(m.ExpectedCashCents),
		ExpectedCashCents: m.ExpectedCashCents,
		CountedCash:       formatted(m.CountedCashCents),
		CountedCashCents:  m.CountedCashCents,
		Difference:        formatted(m.DifferenceCents),
		DifferenceCents:   m.DifferenceCents,
		Notes:             m.Notes,
		OpenedAt:          m.OpenedAt,
		ClosedAt:          m.ClosedAt,
	}
}
