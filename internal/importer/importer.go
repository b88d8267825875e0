// Package importer loads meter readings from the legacy weekly overview CSV.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"household/internal/core"
)

// Column layout of the CSV export, zero based.
const (
	colDate            = 0
	colWeek            = 1
	colElectricity     = 2
	colElectricityNote = 5
	colGas             = 7
	colWater           = 12
	colExtraNotes      = 13
)

const csvDateLayout = "02.01.2006"

// Store is the subset of the repository the importer writes to.
type Store interface {
	CreateReading(ctx context.Context, r core.MeterReading) (core.MeterReading, error)
	ReadingExists(ctx context.Context, t core.MeterType, date core.Date) (bool, error)
	MarkSynced(ctx context.Context, id int64) error
}

type Importer struct {
	store Store
}

func New(store Store) *Importer {
	return &Importer{store: store}
}

// ImportFile imports the CSV at path. A missing file imports nothing.
func (im *Importer) ImportFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.ErrorContext(ctx, "CSV file not found", "path", path)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	slog.InfoContext(ctx, "Starting CSV import", "path", path)
	return im.Import(ctx, f)
}

// Import reads every row of r and returns how many readings were created.
// Rows already in the database for the same type and date are skipped.
// Imported readings come from the spreadsheet, so they are marked synced.
func (im *Importer) Import(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	created := 0
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return created, fmt.Errorf("read csv: %w", err)
		}
		if first && len(record) > 0 {
			record[0] = strings.TrimPrefix(record[0], "\ufeff")
			first = false
		}

		n, err := im.importRecord(ctx, record)
		created += n
		if err != nil {
			return created, err
		}
	}

	slog.InfoContext(ctx, "CSV import finished", "created", created)
	return created, nil
}

func (im *Importer) importRecord(ctx context.Context, record []string) (int, error) {
	date, ok := parseDate(field(record, colDate))
	if !ok {
		return 0, nil
	}
	week := parseWeek(field(record, colWeek))
	extra := extraNote(record, colExtraNotes)

	rows := []struct {
		meterType core.MeterType
		raw       string
		notes     string
	}{
		{core.Electricity, field(record, colElectricity), joinNotes(field(record, colElectricityNote), extra)},
		{core.Gas, field(record, colGas), extra},
		{core.Water, field(record, colWater), extra},
	}

	created := 0
	for _, row := range rows {
		ok, err := im.createIfPresent(ctx, row.meterType, row.raw, date, week, row.notes)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

func (im *Importer) createIfPresent(ctx context.Context, t core.MeterType, raw string, date core.Date, week *int, notes string) (bool, error) {
	value, ok := ParseDecimal(raw)
	if !ok {
		return false, nil
	}

	exists, err := im.store.ReadingExists(ctx, t, date)
	if err != nil {
		return false, fmt.Errorf("check existing %s reading on %s: %w", t, date, err)
	}
	if exists {
		return false, nil
	}

	saved, err := im.store.CreateReading(ctx, core.MeterReading{
		MeterType:    t,
		ReadingValue: value,
		ReadingWeek:  week,
		ReadingDate:  date,
		Notes:        notes,
	})
	if err != nil {
		return false, fmt.Errorf("save %s reading on %s: %w", t, date, err)
	}
	if err := im.store.MarkSynced(ctx, saved.ID); err != nil {
		slog.WarnContext(ctx, "Failed to mark imported reading as synced", "id", saved.ID, "error", err)
	}
	return true, nil
}

// ParseDecimal reads spreadsheet numbers such as "1.234,56 €" or "12,5".
func ParseDecimal(raw string) (decimal.Decimal, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return decimal.Decimal{}, false
	}
	value = strings.NewReplacer("€", "", "EUR", "", "Â", "", " ", "").Replace(value)

	hasComma := strings.Contains(value, ",")
	switch {
	case hasComma && strings.Contains(value, "."):
		value = strings.ReplaceAll(value, ".", "")
		value = strings.ReplaceAll(value, ",", ".")
	case hasComma:
		value = strings.ReplaceAll(value, ",", ".")
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func parseDate(raw string) (core.Date, bool) {
	if raw == "" || strings.EqualFold(raw, "Datum") {
		return core.Date{}, false
	}
	t, err := time.Parse(csvDateLayout, raw)
	if err != nil {
		return core.Date{}, false
	}
	return core.DateOf(t), true
}

func parseWeek(raw string) *int {
	if raw == "" {
		return nil
	}
	w, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &w
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// extraNote joins the free text cells from start on that contain letters.
func extraNote(record []string, start int) string {
	var notes []string
	for i := start; i < len(record); i++ {
		v := field(record, i)
		if v != "" && strings.IndexFunc(v, unicode.IsLetter) >= 0 {
			notes = append(notes, v)
		}
	}
	return strings.Join(notes, " | ")
}

func joinNotes(first, second string) string {
	switch {
	case first == "":
		return second
	case second == "":
		return first
	}
	return first + " | " + second
}
