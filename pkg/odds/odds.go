// Package odds normalizes the loosely typed price fields the upstream feed
// emits. The same field can arrive as a string, a number or null depending
// on sportsbook, and over/under markets sometimes embed the line in the
// side token ("O 5.5"). Everything is canonicalized to strings so that two
// encodings of the same price always compare equal in the state store.
package odds

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Sides recognized as structured over/under tokens.
const (
	SideOver  = "O"
	SideUnder = "U"
)

// Normalize converts a raw odds value into its canonical string form.
// Numeric inputs are rendered as integer strings (American odds have no
// fractional part), string inputs are trimmed. The second return value is
// false when the odds are absent or blank, which the feed uses to signal a
// suspended market.
func Normalize(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case float64:
		return decimal.NewFromFloat(t).Truncate(0).String(), true
	case int:
		return decimal.NewFromInt(int64(t)).String(), true
	case int64:
		return decimal.NewFromInt(t).String(), true
	default:
		s := strings.TrimSpace(fmt.Sprintf("%v", t))
		return s, s != ""
	}
}

// NormalizeLine converts a raw line value ("5.5", 5.5, "-3.5") into a
// canonical decimal string, or nil when absent. Values that do not parse as
// numbers are kept verbatim rather than dropped.
func NormalizeLine(v any) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return ptr(formatLine(decimal.NewFromFloat(t)))
	case int:
		return ptr(formatLine(decimal.NewFromInt(int64(t))))
	case string:
		if t == "" {
			return nil
		}
		if d, err := decimal.NewFromString(strings.TrimSpace(t)); err == nil {
			return ptr(formatLine(d))
		}
		return &t
	default:
		return ptr(fmt.Sprintf("%v", t))
	}
}

// ParseSide extracts the over/under side and line from the feed's
// over_under and line fields. The side field may embed the line ("O 5.5"),
// in which case it wins over the separate line field. A side token that is
// neither O nor U is preserved verbatim for display; callers treat it as
// having no structured side.
func ParseSide(overUnderRaw, lineRaw any) (side, line *string) {
	raw := stringify(overUnderRaw)

	if raw != "" && strings.Contains(raw, " ") {
		parts := strings.SplitN(raw, " ", 2)
		if parts[0] != "" {
			side = ptr(strings.ToUpper(parts[0][:1]))
		}
		if d, err := decimal.NewFromString(strings.TrimSpace(parts[1])); err == nil {
			line = ptr(formatLine(d))
		}
	}

	if side == nil && raw != "" {
		s := strings.ToUpper(raw[:1])
		if s != SideOver && s != SideUnder {
			s = raw
		}
		side = &s
	}

	if line == nil {
		line = NormalizeLine(lineRaw)
	}
	return side, line
}

// IsStructuredSide reports whether a side token is a recognized over/under
// marker rather than an opaque display string.
func IsStructuredSide(side *string) bool {
	return side != nil && (*side == SideOver || *side == SideUnder)
}

// formatLine renders a line with at least one decimal place so whole-number
// lines stay visually distinct from moneyline odds ("5.0", not "5").
func formatLine(d decimal.Decimal) string {
	if d.IsInteger() {
		return d.StringFixed(1)
	}
	return d.String()
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return formatLine(decimal.NewFromFloat(t))
	default:
		return fmt.Sprintf("%v", t)
	}
}

func ptr(s string) *string {
	return &s
}
