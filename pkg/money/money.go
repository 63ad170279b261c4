// Package money keeps amounts as integer cents and only uses decimals at the edges.
package money

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const basisPointsPerUnit = 10000

// Format renders cents as a fixed two-decimal string, e.g. 2900 -> "29.00".
func Format(cents int) string {
	return decimal.New(int64(cents), -2).StringFixed(2)
}

// ApplyRate returns amount * bps / 10000 rounded half away from zero.
func ApplyRate(amountCents, basisPoints int) int {
	rate := decimal.New(int64(basisPoints), 0).Div(decimal.New(basisPointsPerUnit, 0))
	return int(decimal.New(int64(amountCents), 0).Mul(rate).Round(0).IntPart())
}

// Average divides total by count rounding half away from zero; zero count is zero.
func Average(totalCents, count int) int {
	if count <= 0 {
		return 0
	}
	return int(decimal.New(int64(totalCents), 0).Div(decimal.New(int64(count), 0)).Round(0).IntPart())
}

var maxCents = decimal.New(math.MaxInt64, 0)

// Parse converts a decimal string such as "12.50" into cents, rounding to the
// nearest cent. Amounts whose cents overflow an int64 are rejected.
func Parse(value string) (int, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, err
	}
	cents := d.Shift(2).Round(0)
	if cents.Abs().GreaterThan(maxCents) {
		return 0, fmt.Errorf("amount %s is out of range", value)
	}
	return int(cents.IntPart()), nil
}
