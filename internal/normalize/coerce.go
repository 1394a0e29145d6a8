package normalize

import (
	"math"
	"strconv"
	"strings"
)

// coerceNumber strips currency/percent decoration and parses the result
// as a float64. An unparseable value yields (0, false) — callers treat
// that as null.
func coerceNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		if math.IsNaN(t) {
			return 0, false
		}
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(t)
		s = strings.ReplaceAll(s, "$", "")
		s = strings.ReplaceAll(s, ",", "")
		s = strings.ReplaceAll(s, "%", "")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// coerceInt applies coerceNumber then rounds half-away-from-zero.
func coerceInt(v any) (int, bool) {
	f, ok := coerceNumber(v)
	if !ok {
		return 0, false
	}
	return int(roundHalfAwayFromZero(f)), true
}

func coerceInt64(v any) (int64, bool) {
	f, ok := coerceNumber(v)
	if !ok {
		return 0, false
	}
	return int64(roundHalfAwayFromZero(f)), true
}

func roundHalfAwayFromZero(f float64) float64 {
	if f >= 0 {
		return math.Floor(f + 0.5)
	}
	return math.Ceil(f - 0.5)
}

// coerceBool: "1", "Yes", "True", "true", the integer 1, and the
// boolean true are truthy; everything else is falsy.
func coerceBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch t {
		case "1", "Yes", "True", "true":
			return true
		}
		return false
	case float64:
		return t == 1
	case int:
		return t == 1
	case int64:
		return t == 1
	default:
		return false
	}
}

// coerceString returns a non-empty trimmed string, or ("", false).
func coerceString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

// firstNonEmpty returns the first non-empty string field among keys.
func firstNonEmpty(rec map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := rec[k]; ok {
			if s, ok := coerceString(v); ok {
				return s, true
			}
		}
	}
	return "", false
}
