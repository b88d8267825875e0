package core

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04:05"
	MaxNotesLength = 500
	MaxPriceDigits = 4
	MaxValueDigits = 2
)

type (
	// Date is a calendar day without time of day, encoded as YYYY-MM-DD.
	Date struct {
		time.Time
	}

	// Timestamp accepts RFC 3339 and zone-less ISO date-times.
	Timestamp struct {
		time.Time
	}

	MeterReading struct {
		ID                   int64            `json:"id"`
		MeterType            MeterType        `json:"meterType"`
		ReadingValue         decimal.Decimal  `json:"readingValue"`
		ReadingWeek          *int             `json:"readingWeek,omitempty"`
		ReadingDate          Date             `json:"readingDate"`
		Notes                string           `json:"notes,omitempty"`
		Consumption          *decimal.Decimal `json:"consumption,omitempty"`
		DaysSinceLastReading *int64           `json:"daysSinceLastReading,omitempty"`
		CreatedAt            Timestamp        `json:"createdAt"`
		UpdatedAt            Timestamp        `json:"updatedAt"`
	}

	UtilityPrice struct {
		ID           int64           `json:"id"`
		MeterType    MeterType       `json:"meterType"`
		PricePerUnit decimal.Decimal `json:"price"`
		ValidFrom    Date            `json:"validFrom"`
		ValidTo      *Date           `json:"validTo,omitempty"`
		CreatedAt    Timestamp       `json:"createdAt"`
		UpdatedAt    Timestamp       `json:"updatedAt"`
	}

	ConsumptionResponse struct {
		MeterType               MeterType        `json:"meterType"`
		CurrentReading          decimal.Decimal  `json:"currentReading"`
		PreviousReading         decimal.Decimal  `json:"previousReading"`
		Consumption             decimal.Decimal  `json:"consumption"`
		CurrentReadingDate      Date             `json:"currentReadingDate"`
		PreviousReadingDate     Date             `json:"previousReadingDate"`
		DaysBetweenReadings     int64            `json:"daysBetweenReadings"`
		AverageDailyConsumption *decimal.Decimal `json:"averageDailyConsumption,omitempty"`
	}

	CreateReadingRequest struct {
		MeterType    MeterType       `json:"meterType"`
		ReadingValue decimal.Decimal `json:"readingValue"`
		ReadingWeek  *int            `json:"readingWeek,omitempty"`
		ReadingDate  Date            `json:"readingDate"`
		Notes        string          `json:"notes,omitempty"`
	}

	CreatePriceRequest struct {
		MeterType    MeterType       `json:"meterType"`
		PricePerUnit decimal.Decimal `json:"price"`
		ValidFrom    Date            `json:"validFrom"`
		ValidTo      *Date           `json:"validTo,omitempty"`
	}

	ImportResult struct {
		CreatedCount int `json:"createdCount"`
	}
)

// NewDate creates a Date in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Today returns the current calendar day in local time.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// DaysUntil returns the whole days from d to other.
func (d Date) DaysUntil(other Date) int64 {
	return int64(other.Sub(d.Time).Hours() / 24)
}

func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }

func (d Date) After(other Date) bool { return d.Time.After(other.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		// Date-time values are truncated to their day.
		ts, tsErr := ParseTimestamp(s)
		if tsErr != nil {
			return fmt.Errorf("invalid date %q: %w", s, err)
		}
		parsed = DateOf(ts.Time)
	}
	*d = parsed
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts the layouts produced by the API and by SQLite.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format("2006-01-02T15:04:05") + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Validate checks the server-side rules for a new reading.
func (r CreateReadingRequest) Validate() error {
	if r.MeterType == "" {
		return &ValidationError{Field: "meterType", Message: "meter type is required"}
	}
	if !r.MeterType.IsValid() {
		return &ValidationError{Field: "meterType", Message: fmt.Sprintf("unknown meter type %q", r.MeterType)}
	}
	if r.ReadingValue.IsNegative() {
		return &ValidationError{Field: "readingValue", Message: "reading value must be positive or zero"}
	}
	if r.ReadingDate.IsZero() {
		return &ValidationError{Field: "readingDate", Message: "reading date is required"}
	}
	if utf8.RuneCountInString(r.Notes) > MaxNotesLength {
		return &ValidationError{Field: "notes", Message: fmt.Sprintf("notes must not exceed %d characters", MaxNotesLength)}
	}
	return nil
}

// Validate checks the server-side rules for a new price.
func (p CreatePriceRequest) Validate() error {
	if !p.MeterType.IsPriced() {
		return &ValidationError{Field: "meterType", Message: fmt.Sprintf("meter type %q does not carry a price", p.MeterType)}
	}
	if !p.PricePerUnit.IsPositive() {
		return &ValidationError{Field: "price", Message: "price must be greater than zero"}
	}
	if FractionDigits(p.PricePerUnit) > MaxPriceDigits {
		return &ValidationError{Field: "price", Message: fmt.Sprintf("price must have at most %d decimal places", MaxPriceDigits)}
	}
	if p.ValidFrom.IsZero() {
		return &ValidationError{Field: "validFrom", Message: "valid from date is required"}
	}
	if p.ValidTo != nil && !p.ValidTo.IsZero() && !p.ValidFrom.Before(*p.ValidTo) {
		return &ValidationError{Field: "validTo", Message: "valid from date must be before valid to date"}
	}
	return nil
}

// IsCurrent reports whether the price applies on day.
// The end date is inclusive for display purposes.
func (p UtilityPrice) IsCurrent(day Date) bool {
	if p.ValidFrom.After(day) {
		return false
	}
	return p.ValidTo == nil || p.ValidTo.IsZero() || !p.ValidTo.Before(day)
}
