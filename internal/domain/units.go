package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ─── Units ──────────────────────────────────────────────────────────────────
// Amounts are stored as int64 micro-units. Humans type and read whole tokens.

// TokenDecimals is the number of fractional digits of the accounted asset.
const TokenDecimals = 6

// ParseUnits converts a decimal token string ("100", "12.5") to micro-units.
// More than TokenDecimals fractional digits is rejected rather than rounded.
func ParseUnits(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("parse amount %q: negative", s)
	}
	scaled := d.Shift(TokenDecimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("parse amount %q: more than %d decimals", s, TokenDecimals)
	}
	if scaled.GreaterThan(decimal.NewFromInt(1 << 62)) {
		return 0, fmt.Errorf("parse amount %q: out of range", s)
	}
	return scaled.IntPart(), nil
}

// FormatUnits renders micro-units as a fixed six-decimal token string.
func FormatUnits(units int64) string {
	return decimal.New(units, -TokenDecimals).StringFixed(TokenDecimals)
}

// Tokens returns a whole-token count in micro-units.
func Tokens(n int64) int64 { return n * UnitsPerToken }
