package http

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"household/internal/core"
)

// Field messages shown next to invalid form inputs.
const (
	MsgRequired      = "Dieses Feld ist erforderlich"
	MsgMinZero       = "Der Wert muss mindestens 0 sein"
	MsgReadingFormat = "Bitte geben Sie eine gültige Zahl ein (max. 2 Dezimalstellen)"
	MsgMaxLength     = "Maximal %d Zeichen erlaubt"
	MsgPricePositive = "Der Preis muss größer als 0 sein"
	MsgPriceFormat   = "Bitte geben Sie einen gültigen Preis ein (max. 4 Dezimalstellen)"
	MsgDateRange     = "Gültig bis muss nach Gültig ab liegen"
	MsgInvalidValue  = "Ungültiger Wert"
)

// Success and failure notifications.
const (
	MsgReadingCreated = "Zählerstand erfolgreich erfasst!"
	MsgPriceCreated   = "Preis erfolgreich erfasst!"
	MsgPriceDeleted   = "Preis erfolgreich gelöscht"
	MsgImportDone     = "Import abgeschlossen: %d Einträge erstellt."
	MsgImportNoFile   = "Bitte wählen Sie eine CSV-Datei aus."
	MsgImportPartial  = "%d Einträge wurden vor dem Fehler erstellt."
	MsgChartsLoad     = "Fehler beim Laden der Verbrauchsdaten. Bitte erneut versuchen."
	MsgDeleteConfirm  = "Möchten Sie den Preis %s für %s wirklich löschen?"
)

var minPrice = decimal.RequireFromString("0.0001")

// FieldErrors maps a form field name to its message.
type FieldErrors map[string]string

// ReadingForm is the raw reading form input, kept for re-rendering.
type ReadingForm struct {
	MeterType    string
	ReadingValue string
	ReadingDate  string
	Notes        string
	Errors       FieldErrors
}

// NewReadingForm returns an empty form dated today.
func NewReadingForm(preselected core.MeterType) ReadingForm {
	return ReadingForm{
		MeterType:   string(preselected),
		ReadingDate: core.Today().String(),
	}
}

// ParseReadingForm reads the reading fields from a parsed request body.
func ParseReadingForm(p *RequestBodyParser) ReadingForm {
	return ReadingForm{
		MeterType:    p.Get("meterType"),
		ReadingValue: p.Get("readingValue"),
		ReadingDate:  p.Get("readingDate"),
		Notes:        p.Get("notes"),
	}
}

// Validate checks the form and builds the request. On failure f.Errors is
// filled and ok is false.
func (f *ReadingForm) Validate() (req core.CreateReadingRequest, ok bool) {
	f.Errors = FieldErrors{}

	if f.MeterType == "" {
		f.Errors["meterType"] = MsgRequired
	} else if t, err := core.ParseMeterType(f.MeterType); err != nil {
		f.Errors["meterType"] = MsgInvalidValue
	} else {
		req.MeterType = t
	}

	if f.ReadingValue == "" {
		f.Errors["readingValue"] = MsgRequired
	} else if v, err := core.ParseDecimal(f.ReadingValue, core.MaxValueDigits); err != nil {
		if errors.Is(err, core.ErrNegativeNumber) {
			f.Errors["readingValue"] = MsgMinZero
		} else {
			f.Errors["readingValue"] = MsgReadingFormat
		}
	} else {
		req.ReadingValue = v
	}

	if f.ReadingDate == "" {
		f.Errors["readingDate"] = MsgRequired
	} else if d, err := core.ParseDate(f.ReadingDate); err != nil {
		f.Errors["readingDate"] = MsgInvalidValue
	} else {
		req.ReadingDate = d
	}

	if utf8.RuneCountInString(f.Notes) > core.MaxNotesLength {
		f.Errors["notes"] = fmt.Sprintf(MsgMaxLength, core.MaxNotesLength)
	}
	req.Notes = f.Notes

	return req, len(f.Errors) == 0
}

// PriceForm is the raw price form input, kept for re-rendering.
type PriceForm struct {
	MeterType string
	Price     string
	ValidFrom string
	ValidTo   string
	Errors    FieldErrors
}

// NewPriceForm returns an empty form valid from today.
func NewPriceForm(preselected core.MeterType) PriceForm {
	return PriceForm{
		MeterType: string(preselected),
		ValidFrom: core.Today().String(),
	}
}

// ParsePriceForm reads the price fields from a parsed request body.
func ParsePriceForm(p *RequestBodyParser) PriceForm {
	return PriceForm{
		MeterType: p.Get("meterType"),
		Price:     p.Get("price"),
		ValidFrom: p.Get("validFrom"),
		ValidTo:   p.Get("validTo"),
	}
}

// Validate checks the form and builds the request. On failure f.Errors is
// filled and ok is false.
func (f *PriceForm) Validate() (req core.CreatePriceRequest, ok bool) {
	f.Errors = FieldErrors{}

	if f.MeterType == "" {
		f.Errors["meterType"] = MsgRequired
	} else if t, err := core.ParseMeterType(f.MeterType); err != nil || !t.IsPriced() {
		f.Errors["meterType"] = MsgInvalidValue
	} else {
		req.MeterType = t
	}

	if f.Price == "" {
		f.Errors["price"] = MsgRequired
	} else if v, err := core.ParseDecimal(f.Price, core.MaxPriceDigits); err != nil {
		if errors.Is(err, core.ErrNegativeNumber) {
			f.Errors["price"] = MsgPricePositive
		} else {
			f.Errors["price"] = MsgPriceFormat
		}
	} else if v.LessThan(minPrice) {
		f.Errors["price"] = MsgPricePositive
	} else {
		req.PricePerUnit = v
	}

	if f.ValidFrom == "" {
		f.Errors["validFrom"] = MsgRequired
	} else if d, err := core.ParseDate(f.ValidFrom); err != nil {
		f.Errors["validFrom"] = MsgInvalidValue
	} else {
		req.ValidFrom = d
	}

	if f.ValidTo != "" {
		d, err := core.ParseDate(f.ValidTo)
		switch {
		case err != nil:
			f.Errors["validTo"] = MsgInvalidValue
		case !req.ValidFrom.IsZero() && !req.ValidFrom.Before(d):
			f.Errors["validTo"] = MsgDateRange
		default:
			req.ValidTo = &d
		}
	}

	return req, len(f.Errors) == 0
}
