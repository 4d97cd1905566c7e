package dataset

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// parseIntOr parses a string as an integer, returning def if parsing fails or
// the string is empty.
func parseIntOr(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// parseDecimal parses a monetary cell. Currency symbols, thousands separators,
// and surrounding whitespace are tolerated. The second return is false when
// the cell is non-empty but unparseable.
func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// parseDate parses a calendar date in the given layout. The second return is
// false for empty or unparseable cells.
func parseDate(s, layout string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
