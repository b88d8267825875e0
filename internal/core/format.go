package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ISOWeek returns the ISO 8601 week number of d.
func ISOWeek(d Date) int {
	_, week := d.ISOWeek()
	return week
}

// FormatNumber renders d in de-DE notation with up to two decimals.
func FormatNumber(d decimal.Decimal) string {
	return formatGerman(d.Round(2), 0, 2)
}

// FormatFixed renders d in de-DE notation with exactly places decimals.
func FormatFixed(d decimal.Decimal, places int32) string {
	return formatGerman(d.Round(places), int(places), int(places))
}

// FormatEuro renders a unit price as "0,3150 €".
func FormatEuro(d decimal.Decimal) string {
	return FormatFixed(d, MaxPriceDigits) + " €"
}

// FormatCost renders a cost estimate as "12,34 €".
func FormatCost(d decimal.Decimal) string {
	return FormatFixed(d, 2) + " €"
}

// FormatDate renders dd.MM.yyyy, or an em dash for a missing date.
func FormatDate(d *Date) string {
	if d == nil || d.IsZero() {
		return "—"
	}
	return d.Format("02.01.2006")
}

// FormatShortDate renders dd.MM.
func FormatShortDate(d Date) string {
	return d.Format("02.01")
}

// FormatTimestamp renders dd.MM.yyyy HH:mm.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return t.Format("02.01.2006 15:04")
}

func formatGerman(d decimal.Decimal, minFrac, maxFrac int) string {
	s := d.StringFixed(int32(maxFrac))
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	for len(frac) > minFrac && strings.HasSuffix(frac, "0") {
		frac = frac[:len(frac)-1]
	}

	var b strings.Builder
	if neg && (strings.Trim(intPart, "0") != "" || strings.Trim(frac, "0") != "") {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	return b.String()
}
