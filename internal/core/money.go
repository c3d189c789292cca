// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing the currency strings found in the
// expense sheets and for formatting amounts back for display.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseMoney parses a currency string such as "$1,234.56" or "5".
//
// A leading dollar sign and thousands separators are removed before the
// remaining text is parsed as a decimal. A minus sign may precede the dollar
// sign. Empty or non-numeric input reports ok == false rather than an error:
// callers decide whether a missing value is skipped or imputed.
//
// Examples:
//
//	ParseMoney("$1,234.56") -> 1234.56, true
//	ParseMoney("5")         -> 5, true
//	ParseMoney("-$12.50")   -> -12.5, true
//	ParseMoney("hello")     -> 0, false
func ParseMoney(text string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(text)
	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimSpace(s[1:])
	}
	s = strings.Trim(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	// A second sign after the leading minus is not an amount.
	if negative && (strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+")) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// FormatMoney renders an amount as "$1,234.56".
func FormatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + frac
}
