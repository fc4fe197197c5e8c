package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Catalog documents are written by merchandising tooling that is loose with
// types: prices arrive as numbers or strings like "S/ 10.50", codes as
// strings or integers. These helpers normalise those raw values once, at the
// read boundary.

// ParsePrice coerces a raw document value into a price in major units.
// String inputs are stripped down to digits and dots before parsing.
// Unparseable values yield 0.
func ParsePrice(raw any) float64 {
	switch v := raw.(type) {
	case nil:
		return 0
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		cleaned := strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' {
				return r
			}
			return -1
		}, v)
		if cleaned == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

// NormalizeCode renders a raw identifier value as its canonical string form.
// Integral floats lose their trailing ".0" so the code "123" compares equal
// whether it was stored as a string or a number.
func NormalizeCode(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

// ParseCount coerces a raw document value into a non-negative count.
// Negative and unparseable values yield 0.
func ParseCount(raw any) int64 {
	var n int64
	switch v := raw.(type) {
	case int64:
		n = v
	case int:
		n = int64(v)
	case float64:
		n = int64(v)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}
		n = parsed
	default:
		return 0
	}
	if n < 0 {
		return 0
	}
	return n
}

// ParseFlag coerces a raw document value into a bool. Strings accept the
// usual spellings; numbers are true when non-zero.
func ParseFlag(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false
		}
		return parsed
	case float64:
		return v != 0
	case int64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}
