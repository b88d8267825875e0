package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Readings and prices travel as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

var (
	ErrInvalidNumber  = errors.New("invalid number")
	ErrTooManyDigits  = errors.New("too many fractional digits")
	ErrNegativeNumber = errors.New("negative number")
)

// ParseDecimal parses a non-negative decimal written with a dot or a comma
// and at most maxFrac fractional digits.
func ParseDecimal(s string, maxFrac int) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.Zero, ErrInvalidNumber
	}
	if strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrNegativeNumber
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if intPart == "" || !allDigits(intPart) || (hasFrac && (frac == "" || !allDigits(frac))) {
		return decimal.Zero, ErrInvalidNumber
	}
	if len(frac) > maxFrac {
		return decimal.Zero, ErrTooManyDigits
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidNumber
	}
	return d, nil
}

// FractionDigits returns the number of significant fractional digits of d.
func FractionDigits(d decimal.Decimal) int {
	if exp := d.Exponent(); exp < 0 {
		s := strings.TrimRight(d.StringFixed(-exp), "0")
		if _, frac, ok := strings.Cut(s, "."); ok {
			return len(frac)
		}
	}
	return 0
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
