// Package core provides money parsing and formatting utilities.
//
// Amounts are decimal values. Parsing accepts both dot (12.34) and comma (12,34)
// decimal separators; formatting is for display only and never feeds arithmetic.
package core

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount parses a non-negative decimal string.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("-1")    -> 0, ErrNegativeAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	return d, nil
}

// ParseAmountOrZero parses like a number input coerced with parseFloat: anything
// unparsable becomes 0.
func ParseAmountOrZero(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParsePositiveAmount parses an amount that must be strictly greater than zero.
func ParsePositiveAmount(s string) (decimal.Decimal, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatCurrency renders an amount as US dollars with two decimals and
// thousands separators, e.g. "$1,234.50" or "-$3.00".
func FormatCurrency(d decimal.Decimal) string {
	rounded := d.Round(2)
	neg := rounded.IsNegative()
	if neg {
		rounded = rounded.Neg()
	}
	_, cents, _ := strings.Cut(rounded.StringFixed(2), ".")
	s := "$" + humanize.BigComma(rounded.BigInt()) + "." + cents
	if neg {
		return "-" + s
	}
	return s
}

// FormatFixed renders an amount with exactly two decimals and no symbol.
func FormatFixed(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatDate renders a date like "Oct 14, 2026".
func FormatDate(d Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("Jan 2, 2006")
}
