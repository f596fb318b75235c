// Package core provides amount parsing and validation.
//
// This file contains the coercion rules applied to the amount of a new
// assignment: native numbers pass through, the numeric prefix of text is parsed.
package core

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidateAmount coerces v to a finite float64.
//
// Accepted inputs are every Go integer and float kind, json.Number,
// decimal.Decimal and strings starting with a decimal number. Strings are
// trimmed and only their numeric prefix is read, so trailing text is
// ignored. Anything else, NaN and infinities fail with ErrAssignInvalidNumber.
//
// Examples:
//
//	ValidateAmount(15.5)    -> 15.5, nil
//	ValidateAmount("15.5")  -> 15.5, nil
//	ValidateAmount(" 2,50") -> 2, nil
//	ValidateAmount("12abc") -> 12, nil
//	ValidateAmount("abc")   -> 0, ErrAssignInvalidNumber
func ValidateAmount(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case decimal.Decimal:
		f = n.InexactFloat64()
	case json.Number:
		parsed, err := parseAmountText(string(n))
		if err != nil {
			return 0, err
		}
		f = parsed
	case string:
		parsed, err := parseAmountText(n)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, ErrAssignInvalidNumber
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrAssignInvalidNumber
	}
	return f, nil
}

// parseAmountText reads the longest leading decimal number of s, the way
// JavaScript's parseFloat does: "12abc" is 12, "12,5" is 12 and ".5" is 0.5.
// Text without a numeric prefix fails.
func parseAmountText(s string) (float64, error) {
	lit, ok := leadingNumber(strings.TrimSpace(s))
	if !ok {
		return 0, ErrAssignInvalidNumber
	}
	d, err := decimal.NewFromString(lit)
	if err != nil {
		return 0, ErrAssignInvalidNumber
	}
	return d.InexactFloat64(), nil
}

// leadingNumber returns the numeric prefix of s rewritten as a literal
// decimal.NewFromString accepts: sign, integer digits, fraction, exponent.
func leadingNumber(s string) (string, bool) {
	var b strings.Builder
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		if s[i] == '-' {
			b.WriteByte('-')
		}
		i++
	}

	intStart := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	intPart := s[intStart:i]

	var fracPart string
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		fracPart = s[i+1 : j]
		if intPart != "" || fracPart != "" {
			i = j
		}
	}
	if intPart == "" && fracPart == "" {
		return "", false
	}

	if intPart == "" {
		intPart = "0"
	}
	b.WriteString(intPart)
	if fracPart != "" {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}

	// An exponent counts only when at least one digit follows it.
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		if k > j {
			b.WriteByte('e')
			b.WriteString(s[i+1 : k])
		}
	}
	return b.String(), true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
