package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParsePrice reads a price that the backend may send as a JSON number or as
// a numeric string ("4.99"). Returns false for anything else, including null.
// Examples: 4.99 → 4.99, "4.99" → 4.99, "" → false, "abc" → false
func ParsePrice(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	switch p := v.(type) {
	case float64:
		return p, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// FormatMoney renders an amount in major units with two decimals.
// Used on the wire so consumers never see binary float artifacts.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ToCents converts an amount in major units to minor units, rounding half
// away from zero. The payment hand-off expects integer cents.
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}
