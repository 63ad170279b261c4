package sales

import (
	"github.com/angelmondragon/pos-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/money"
)

type resolvedLine struct {
	item     catalog.Item
	quantity int
}

func (l resolvedLine) totalCents() int {
	return l.item.PriceCents * l.quantity
}

// MaxSaleTotalCents caps the total of one sale, tax included.
const MaxSaleTotalCents = 100_000_000_000

// Totals are the monetary results of a priced cart.
type Totals struct {
	SubtotalCents int
	TaxCents      int
	TotalCents    int
	TaxRateBps    int
}

// priceLines sums line totals and applies the tax rate once on the subtotal.
// Carts whose amounts would exceed MaxSaleTotalCents are a validation error.
func priceLines(lines []resolvedLine, taxRateBps int) (Totals, error) {
	subtotal := 0
	for i, line := range lines {
		if price := line.item.PriceCents; price > 0 && line.quantity > MaxSaleTotalCents/price {
			return Totals{}, lineError(i, "line total is too large")
		}
		subtotal += line.totalCents()
		if subtotal > MaxSaleTotalCents {
			return Totals{}, totalTooLarge()
		}
	}
	tax := money.ApplyRate(subtotal, taxRateBps)
	if subtotal+tax > MaxSaleTotalCents {
		return Totals{}, totalTooLarge()
	}
	return Totals{
		SubtotalCents: subtotal,
		TaxCents:      tax,
		TotalCents:    subtotal + tax,
		TaxRateBps:    taxRateBps,
	}, nil
}

func totalTooLarge() error {
	return pkgerrors.Newf(pkgerrors.CodeValidation, "sale total cannot exceed %s", money.Format(MaxSaleTotalCents))
}
