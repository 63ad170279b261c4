package sales

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/pos-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
)

func TestPriceLines(t *testing.T) {
	cases := []struct {
		name  string
		lines []resolvedLine
		bps   int
		want  Totals
	}{
		{
			name: "sixteen percent on 25.00",
			lines: []resolvedLine{
				{item: catalog.Item{PriceCents: 1000}, quantity: 1},
				{item: catalog.Item{PriceCents: 500}, quantity: 3},
			},
			bps:  1600,
			want: Totals{SubtotalCents: 2500, TaxCents: 400, TotalCents: 2900, TaxRateBps: 1600},
		},
		{
			name:  "rounds half away from zero",
			lines: []resolvedLine{{item: catalog.Item{PriceCents: 50}, quantity: 1}},
			bps:   100,
			want:  Totals{SubtotalCents: 50, TaxCents: 1, TotalCents: 51, TaxRateBps: 100},
		},
		{
			name:  "rounds down below half",
			lines: []resolvedLine{{item: catalog.Item{PriceCents: 3}, quantity: 1}},
			bps:   1600,
			want:  Totals{SubtotalCents: 3, TaxCents: 0, TotalCents: 3, TaxRateBps: 1600},
		},
		{
			name:  "zero priced product",
			lines: []resolvedLine{{item: catalog.Item{PriceCents: 0}, quantity: 4}},
			bps:   1600,
			want:  Totals{TaxRateBps: 1600},
		},
		{
			name:  "tax free",
			lines: []resolvedLine{{item: catalog.Item{PriceCents: 1999}, quantity: 2}},
			bps:   0,
			want:  Totals{SubtotalCents: 3998, TotalCents: 3998},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := priceLines(tc.lines, tc.bps)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestPriceLinesRejectsOversizedTotals(t *testing.T) {
	cases := []struct {
		name  string
		lines []resolvedLine
		bps   int
		line  any
	}{
		{
			name:  "single line over the cap",
			lines: []resolvedLine{{item: catalog.Item{PriceCents: 20_000_000}, quantity: MaxLineQuantity}},
			line:  0,
		},
		{
			name: "many lines add up past the cap",
			lines: []resolvedLine{
				{item: catalog.Item{PriceCents: 9_000_000}, quantity: MaxLineQuantity},
				{item: catalog.Item{PriceCents: 9_000_000}, quantity: MaxLineQuantity},
			},
		},
		{
			name:  "tax pushes the total past the cap",
			lines: []resolvedLine{{item: catalog.Item{PriceCents: 9_000_000}, quantity: MaxLineQuantity}},
			bps:   1600,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := priceLines(tc.lines, tc.bps)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
			if tc.line != nil {
				require.Equal(t, map[string]any{"line": tc.line}, pkgerrors.As(err).Details())
			}
		})
	}

	got, err := priceLines([]resolvedLine{{item: catalog.Item{PriceCents: 10_000_000}, quantity: MaxLineQuantity}}, 0)
	require.NoError(t, err)
	require.Equal(t, MaxSaleTotalCents, got.TotalCents)
}
