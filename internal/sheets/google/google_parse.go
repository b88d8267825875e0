package google

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"household/internal/core"
)

// Column layout of the legacy meter spreadsheet, zero based.
const (
	colDate            = 0
	colWeek            = 1
	colElectricity     = 2
	colElectricityNote = 5
	colGas             = 7
	colWater           = 12
	colNotes           = 13
)

const sheetDateLayout = "02.01.2006"

func valueColumn(t core.MeterType) (int, error) {
	switch t {
	case core.Electricity:
		return colElectricity, nil
	case core.Gas:
		return colGas, nil
	case core.Water:
		return colWater, nil
	}
	return 0, fmt.Errorf("no sheet column for meter type %q", t)
}

func noteColumn(t core.MeterType) int {
	if t == core.Electricity {
		return colElectricityNote
	}
	return colNotes
}

// columnLetter converts a zero based index to A1 notation.
func columnLetter(idx int) string {
	var b []byte
	for idx >= 0 {
		b = append([]byte{byte('A' + idx%26)}, b...)
		idx = idx/26 - 1
	}
	return string(b)
}

// findDateRow returns the 1-based row whose date cell matches day, or 0.
func findDateRow(values [][]interface{}, day core.Date) int {
	want := day.Format(sheetDateLayout)
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		cell := strings.TrimSpace(fmt.Sprint(row[0]))
		if cell == want {
			return i + 1
		}
		// Rows written by hand may lack leading zeros.
		if t, err := time.Parse("2.1.2006", cell); err == nil && core.DateOf(t).Equal(day.Time) {
			return i + 1
		}
	}
	return 0
}

// sheetDecimal renders d with a decimal comma for a German locale sheet.
func sheetDecimal(d decimal.Decimal) string {
	return strings.Replace(d.String(), ".", ",", 1)
}
