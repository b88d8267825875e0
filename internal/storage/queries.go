package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"household/internal/core"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx runs the queries inside tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type ReadingRow struct {
	ID           int64
	MeterType    string
	ReadingValue string
	ReadingWeek  sql.NullInt64
	ReadingDate  string
	Notes        sql.NullString
	SyncStatus   string
	CreatedAt    string
	UpdatedAt    string
}

type PriceRow struct {
	ID        int64
	MeterType string
	Price     string
	ValidFrom string
	ValidTo   sql.NullString
	CreatedAt string
	UpdatedAt string
}

const readingColumns = `id, meter_type, reading_value, reading_week, reading_date, notes, sync_status, created_at, updated_at`

const priceColumns = `id, meter_type, price, valid_from, valid_to, created_at, updated_at`

type CreateReadingParams struct {
	MeterType    string
	ReadingValue string
	ReadingWeek  sql.NullInt64
	ReadingDate  string
	Notes        sql.NullString
}

const createReading = `INSERT INTO meter_readings (meter_type, reading_value, reading_week, reading_date, notes)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) CreateReading(ctx context.Context, arg CreateReadingParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createReading,
		arg.MeterType, arg.ReadingValue, arg.ReadingWeek, arg.ReadingDate, arg.Notes)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getReading = `SELECT ` + readingColumns + ` FROM meter_readings WHERE id = ?`

func (q *Queries) GetReading(ctx context.Context, id int64) (ReadingRow, error) {
	return scanReading(q.db.QueryRowContext(ctx, getReading, id))
}

const listReadings = `SELECT ` + readingColumns + ` FROM meter_readings
ORDER BY reading_date DESC, id DESC`

func (q *Queries) ListReadings(ctx context.Context) ([]ReadingRow, error) {
	return q.queryReadings(ctx, listReadings)
}

const listReadingsByType = `SELECT ` + readingColumns + ` FROM meter_readings
WHERE meter_type = ?
ORDER BY reading_date DESC, id DESC`

func (q *Queries) ListReadingsByType(ctx context.Context, meterType string) ([]ReadingRow, error) {
	return q.queryReadings(ctx, listReadingsByType, meterType)
}

const latestReadings = `SELECT ` + readingColumns + ` FROM meter_readings
WHERE meter_type = ?
ORDER BY reading_date DESC, id DESC
LIMIT ?`

func (q *Queries) LatestReadings(ctx context.Context, meterType string, limit int64) ([]ReadingRow, error) {
	return q.queryReadings(ctx, latestReadings, meterType, limit)
}

const countReadingsOn = `SELECT COUNT(*) FROM meter_readings WHERE meter_type = ? AND reading_date = ?`

func (q *Queries) CountReadingsOn(ctx context.Context, meterType, date string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countReadingsOn, meterType, date).Scan(&n)
	return n, err
}

const readingsBySyncStatus = `SELECT ` + readingColumns + ` FROM meter_readings
WHERE sync_status = ?
ORDER BY id
LIMIT ?`

func (q *Queries) ReadingsBySyncStatus(ctx context.Context, status string, limit int64) ([]ReadingRow, error) {
	return q.queryReadings(ctx, readingsBySyncStatus, status, limit)
}

const updateSyncStatus = `UPDATE meter_readings SET sync_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

func (q *Queries) UpdateSyncStatus(ctx context.Context, id int64, status string) error {
	_, err := q.db.ExecContext(ctx, updateSyncStatus, status, id)
	return err
}

type CreatePriceParams struct {
	MeterType string
	Price     string
	ValidFrom string
	ValidTo   sql.NullString
}

const createPrice = `INSERT INTO utility_prices (meter_type, price, valid_from, valid_to)
VALUES (?, ?, ?, ?)`

func (q *Queries) CreatePrice(ctx context.Context, arg CreatePriceParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createPrice, arg.MeterType, arg.Price, arg.ValidFrom, arg.ValidTo)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getPrice = `SELECT ` + priceColumns + ` FROM utility_prices WHERE id = ?`

func (q *Queries) GetPrice(ctx context.Context, id int64) (PriceRow, error) {
	return scanPrice(q.db.QueryRowContext(ctx, getPrice, id))
}

const listPrices = `SELECT ` + priceColumns + ` FROM utility_prices
ORDER BY valid_from DESC, id DESC`

func (q *Queries) ListPrices(ctx context.Context) ([]PriceRow, error) {
	return q.queryPrices(ctx, listPrices)
}

const listPricesByType = `SELECT ` + priceColumns + ` FROM utility_prices
WHERE meter_type = ?
ORDER BY valid_from DESC, id DESC`

func (q *Queries) ListPricesByType(ctx context.Context, meterType string) ([]PriceRow, error) {
	return q.queryPrices(ctx, listPricesByType, meterType)
}

const overlappingPrices = `SELECT ` + priceColumns + ` FROM utility_prices
WHERE meter_type = ?
  AND valid_from < ?
  AND (valid_to IS NULL OR valid_to > ?)
ORDER BY valid_from`

func (q *Queries) OverlappingPrices(ctx context.Context, meterType, from, to string) ([]PriceRow, error) {
	return q.queryPrices(ctx, overlappingPrices, meterType, to, from)
}

const currentPrice = `SELECT ` + priceColumns + ` FROM utility_prices
WHERE meter_type = ?
  AND valid_from <= ?
  AND (valid_to IS NULL OR valid_to > ?)
ORDER BY valid_from DESC
LIMIT 1`

func (q *Queries) CurrentPrice(ctx context.Context, meterType, day string) (PriceRow, error) {
	return scanPrice(q.db.QueryRowContext(ctx, currentPrice, meterType, day, day))
}

const deletePrice = `DELETE FROM utility_prices WHERE id = ?`

func (q *Queries) DeletePrice(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deletePrice, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReading(s scanner) (ReadingRow, error) {
	var r ReadingRow
	err := s.Scan(&r.ID, &r.MeterType, &r.ReadingValue, &r.ReadingWeek, &r.ReadingDate,
		&r.Notes, &r.SyncStatus, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func scanPrice(s scanner) (PriceRow, error) {
	var p PriceRow
	err := s.Scan(&p.ID, &p.MeterType, &p.Price, &p.ValidFrom, &p.ValidTo, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (q *Queries) queryReadings(ctx context.Context, query string, args ...any) ([]ReadingRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ReadingRow
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

func (q *Queries) queryPrices(ctx context.Context, query string, args ...any) ([]PriceRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PriceRow
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r ReadingRow) toCore() (core.MeterReading, error) {
	value, err := decimal.NewFromString(r.ReadingValue)
	if err != nil {
		return core.MeterReading{}, fmt.Errorf("reading %d: parse value %q: %w", r.ID, r.ReadingValue, err)
	}
	date, err := core.ParseDate(r.ReadingDate)
	if err != nil {
		return core.MeterReading{}, fmt.Errorf("reading %d: parse date %q: %w", r.ID, r.ReadingDate, err)
	}
	m := core.MeterReading{
		ID:           r.ID,
		MeterType:    core.MeterType(r.MeterType),
		ReadingValue: value,
		ReadingDate:  date,
		Notes:        r.Notes.String,
	}
	if r.ReadingWeek.Valid {
		week := int(r.ReadingWeek.Int64)
		m.ReadingWeek = &week
	}
	m.CreatedAt, _ = core.ParseTimestamp(r.CreatedAt)
	m.UpdatedAt, _ = core.ParseTimestamp(r.UpdatedAt)
	return m, nil
}

func (p PriceRow) toCore() (core.UtilityPrice, error) {
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return core.UtilityPrice{}, fmt.Errorf("price %d: parse price %q: %w", p.ID, p.Price, err)
	}
	from, err := core.ParseDate(p.ValidFrom)
	if err != nil {
		return core.UtilityPrice{}, fmt.Errorf("price %d: parse valid_from %q: %w", p.ID, p.ValidFrom, err)
	}
	u := core.UtilityPrice{
		ID:           p.ID,
		MeterType:    core.MeterType(p.MeterType),
		PricePerUnit: price,
		ValidFrom:    from,
	}
	if p.ValidTo.Valid && p.ValidTo.String != "" {
		to, err := core.ParseDate(p.ValidTo.String)
		if err != nil {
			return core.UtilityPrice{}, fmt.Errorf("price %d: parse valid_to %q: %w", p.ID, p.ValidTo.String, err)
		}
		u.ValidTo = &to
	}
	u.CreatedAt, _ = core.ParseTimestamp(p.CreatedAt)
	u.UpdatedAt, _ = core.ParseTimestamp(p.UpdatedAt)
	return u, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDate(d *core.Date) sql.NullString {
	if d == nil || d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}
