package http

import (
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"

	"household/internal/consumption"
	"household/internal/core"
)

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// templateFuncs exposes the German formatting helpers to the templates.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"number":     core.FormatNumber,
		"euro":       core.FormatEuro,
		"cost":       core.FormatCost,
		"date":       core.FormatDate,
		"day":        func(d core.Date) string { return core.FormatDate(&d) },
		"shortDate":  core.FormatShortDate,
		"monthLabel": consumption.MonthLabel,
		"fixed": func(d decimal.Decimal, places int) string {
			return core.FormatFixed(d, int32(places))
		},
		"numberPtr": func(d *decimal.Decimal) string {
			if d == nil {
				return "—"
			}
			return core.FormatNumber(*d)
		},
		"costPtr": func(d *decimal.Decimal) string {
			if d == nil {
				return "—"
			}
			return core.FormatCost(*d)
		},
		"coord": func(v float64) string {
			return decimal.NewFromFloat(v).Round(2).String()
		},
		"pct": func(v float64) string {
			return decimal.NewFromFloat(v).Round(2).String() + "%"
		},
		"dict": func(pairs ...any) (map[string]any, error) {
			if len(pairs)%2 != 0 {
				return nil, errors.New("dict: odd number of arguments")
			}
			m := make(map[string]any, len(pairs)/2)
			for i := 0; i < len(pairs); i += 2 {
				key, ok := pairs[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
				}
				m[key] = pairs[i+1]
			}
			return m, nil
		},
		"selected": func(a, b any) template.HTMLAttr {
			if a == b {
				return "selected"
			}
			return ""
		},
	}
}
