// Package metrics holds the canonical financial metric schema and the numeric
// normalisation applied to values reported by the extraction backend.
package metrics

import (
	"encoding/json"
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// unitMarkers are currency symbols and unit words that annual reports print next to figures.
// Longer variants come first so "Crore" is removed before "Cr".
var unitMarkers = strings.NewReplacer(
	"₹", "",
	"$", "",
	"€", "",
	"£", "",
	"Rs.", "",
	"Rs", "",
	"INR", "",
	"USD", "",
	"Crores", "",
	"Crore", "",
	"Cr.", "",
	"Cr", "",
	"Lakhs", "",
	"Lakh", "",
)

// Normalize converts a raw metric value into a float64.
// The second return value is false when the value is not a number; callers must skip
// the metric in that case rather than treat it as zero.
func Normalize(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		return NormalizeString(v.String())
	case string:
		return NormalizeString(v)
	default:
		return 0, false
	}
}

// NormalizeString parses a display-formatted number such as "1,234.50", "(1,234.50)"
// or "₹ 12,000 Cr." into its canonical value.
func NormalizeString(s string) (float64, bool) {
	t := unitMarkers.Replace(strings.TrimSpace(s))
	t = strings.Map(func(r rune) rune {
		if r == ',' || r == '\'' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, t)

	negative := false
	if strings.HasPrefix(t, "(") && strings.HasSuffix(t, ")") {
		negative = true
		t = t[1 : len(t)-1]
	}
	if t == "" || strings.ContainsAny(t, "()") {
		return 0, false
	}

	d, err := decimal.NewFromString(t)
	if err != nil {
		return 0, false
	}
	if negative {
		d = d.Neg()
	}

	f, _ := d.Float64()
	return finite(f)
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
