package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"household/internal/core"

	_ "modernc.org/sqlite"
)

// Sync states of a reading towards the spreadsheet export.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

// OpenEnded stands in for a missing validTo when checking price windows.
var OpenEnded = core.NewDate(9999, 12, 31)

type (
	ReadingRepository interface {
		CreateReading(ctx context.Context, r core.MeterReading) (core.MeterReading, error)
		GetReading(ctx context.Context, id int64) (core.MeterReading, error)
		// ListReadings returns all readings, newest reading date first.
		ListReadings(ctx context.Context) ([]core.MeterReading, error)
		ListReadingsByType(ctx context.Context, t core.MeterType) ([]core.MeterReading, error)
		// LatestReadings returns up to limit readings of t, newest first.
		LatestReadings(ctx context.Context, t core.MeterType, limit int) ([]core.MeterReading, error)
		ReadingExists(ctx context.Context, t core.MeterType, date core.Date) (bool, error)
	}

	PriceRepository interface {
		CreatePrice(ctx context.Context, p core.UtilityPrice) (core.UtilityPrice, error)
		// ListPrices returns all prices, newest validFrom first.
		ListPrices(ctx context.Context) ([]core.UtilityPrice, error)
		ListPricesByType(ctx context.Context, t core.MeterType) ([]core.UtilityPrice, error)
		// OverlappingPrices returns prices of t whose window intersects [from, to).
		OverlappingPrices(ctx context.Context, t core.MeterType, from, to core.Date) ([]core.UtilityPrice, error)
		// CurrentPrice returns core.ErrNotFound when no price applies on day.
		CurrentPrice(ctx context.Context, t core.MeterType, day core.Date) (core.UtilityPrice, error)
		DeletePrice(ctx context.Context, id int64) error
	}

	// SyncRepository tracks which readings still need exporting.
	SyncRepository interface {
		PendingSyncReadings(ctx context.Context, limit int) ([]core.MeterReading, error)
		MarkSynced(ctx context.Context, id int64) error
		MarkSyncError(ctx context.Context, id int64) error
	}

	Repository interface {
		ReadingRepository
		PriceRepository
		SyncRepository
		Close() error
	}

	// Transactor runs fn against a repository bound to a single transaction.
	// fn must use only the repository it is given.
	Transactor interface {
		InTx(ctx context.Context, fn func(Repository) error) error
	}
)

// InTx runs fn inside a transaction when repo is a Transactor and directly
// against repo otherwise.
func InTx[R any](ctx context.Context, repo R, fn func(R) error) error {
	t, ok := any(repo).(Transactor)
	if !ok {
		return fn(repo)
	}
	return t.InTx(ctx, func(txRepo Repository) error {
		bound, ok := any(txRepo).(R)
		if !ok {
			return fmt.Errorf("transaction repository %T does not implement %T", txRepo, repo)
		}
		return fn(bound)
	})
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var (
	_ Repository = (*SQLiteRepository)(nil)
	_ Transactor = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewSQLiteRepositoryWithDB(db), nil
}

// NewSQLiteRepositoryWithDB wraps an already migrated database.
func NewSQLiteRepositoryWithDB(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}
}

// InTx commits when fn returns nil and rolls back otherwise. Nested calls
// reuse the outer transaction.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&SQLiteRepository{queries: r.queries.WithTx(tx)}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.WarnContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CreateReading(ctx context.Context, m core.MeterReading) (core.MeterReading, error) {
	id, err := r.queries.CreateReading(ctx, CreateReadingParams{
		MeterType:    string(m.MeterType),
		ReadingValue: m.ReadingValue.String(),
		ReadingWeek:  nullInt(m.ReadingWeek),
		ReadingDate:  m.ReadingDate.String(),
		Notes:        nullString(m.Notes),
	})
	if err != nil {
		return core.MeterReading{}, fmt.Errorf("create reading: %w", err)
	}

	slog.InfoContext(ctx, "Reading saved to SQLite",
		"id", id,
		"meter_type", m.MeterType,
		"reading_value", m.ReadingValue.String(),
		"reading_date", m.ReadingDate.String())

	return r.GetReading(ctx, id)
}

func (r *SQLiteRepository) GetReading(ctx context.Context, id int64) (core.MeterReading, error) {
	row, err := r.queries.GetReading(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MeterReading{}, fmt.Errorf("reading %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.MeterReading{}, fmt.Errorf("get reading %d: %w", id, err)
	}
	return row.toCore()
}

func (r *SQLiteRepository) ListReadings(ctx context.Context) ([]core.MeterReading, error) {
	rows, err := r.queries.ListReadings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	return readingsToCore(rows)
}

func (r *SQLiteRepository) ListReadingsByType(ctx context.Context, t core.MeterType) ([]core.MeterReading, error) {
	rows, err := r.queries.ListReadingsByType(ctx, string(t))
	if err != nil {
		return nil, fmt.Errorf("list %s readings: %w", t, err)
	}
	return readingsToCore(rows)
}

func (r *SQLiteRepository) LatestReadings(ctx context.Context, t core.MeterType, limit int) ([]core.MeterReading, error) {
	rows, err := r.queries.LatestReadings(ctx, string(t), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("latest %s readings: %w", t, err)
	}
	return readingsToCore(rows)
}

func (r *SQLiteRepository) ReadingExists(ctx context.Context, t core.MeterType, date core.Date) (bool, error) {
	n, err := r.queries.CountReadingsOn(ctx, string(t), date.String())
	if err != nil {
		return false, fmt.Errorf("check %s reading on %s: %w", t, date, err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) PendingSyncReadings(ctx context.Context, limit int) ([]core.MeterReading, error) {
	rows, err := r.queries.ReadingsBySyncStatus(ctx, SyncPending, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending readings: %w", err)
	}
	return readingsToCore(rows)
}

// MarkSynced marks a reading as exported
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if err := r.queries.UpdateSyncStatus(ctx, id, SyncSynced); err != nil {
		return fmt.Errorf("mark reading %d synced: %w", id, err)
	}
	return nil
}

// MarkSyncError marks a reading whose export failed
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if err := r.queries.UpdateSyncStatus(ctx, id, SyncError); err != nil {
		return fmt.Errorf("mark reading %d sync error: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) CreatePrice(ctx context.Context, p core.UtilityPrice) (core.UtilityPrice, error) {
	id, err := r.queries.CreatePrice(ctx, CreatePriceParams{
		MeterType: string(p.MeterType),
		Price:     p.PricePerUnit.String(),
		ValidFrom: p.ValidFrom.String(),
		ValidTo:   nullDate(p.ValidTo),
	})
	if err != nil {
		return core.UtilityPrice{}, fmt.Errorf("create price: %w", err)
	}

	slog.InfoContext(ctx, "Price saved to SQLite",
		"id", id,
		"meter_type", p.MeterType,
		"price", p.PricePerUnit.String(),
		"valid_from", p.ValidFrom.String())

	row, err := r.queries.GetPrice(ctx, id)
	if err != nil {
		return core.UtilityPrice{}, fmt.Errorf("get price %d: %w", id, err)
	}
	return row.toCore()
}

func (r *SQLiteRepository) ListPrices(ctx context.Context) ([]core.UtilityPrice, error) {
	rows, err := r.queries.ListPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	return pricesToCore(rows)
}

func (r *SQLiteRepository) ListPricesByType(ctx context.Context, t core.MeterType) ([]core.UtilityPrice, error) {
	rows, err := r.queries.ListPricesByType(ctx, string(t))
	if err != nil {
		return nil, fmt.Errorf("list %s prices: %w", t, err)
	}
	return pricesToCore(rows)
}

func (r *SQLiteRepository) OverlappingPrices(ctx context.Context, t core.MeterType, from, to core.Date) ([]core.UtilityPrice, error) {
	rows, err := r.queries.OverlappingPrices(ctx, string(t), from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("find overlapping %s prices: %w", t, err)
	}
	return pricesToCore(rows)
}

func (r *SQLiteRepository) CurrentPrice(ctx context.Context, t core.MeterType, day core.Date) (core.UtilityPrice, error) {
	row, err := r.queries.CurrentPrice(ctx, string(t), day.String())
	if errors.Is(err, sql.ErrNoRows) {
		return core.UtilityPrice{}, fmt.Errorf("current %s price on %s: %w", t, day, core.ErrNotFound)
	}
	if err != nil {
		return core.UtilityPrice{}, fmt.Errorf("current %s price: %w", t, err)
	}
	return row.toCore()
}

func (r *SQLiteRepository) DeletePrice(ctx context.Context, id int64) error {
	n, err := r.queries.DeletePrice(ctx, id)
	if err != nil {
		return fmt.Errorf("delete price %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("price %d: %w", id, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Price deleted from SQLite", "id", id)
	return nil
}

func readingsToCore(rows []ReadingRow) ([]core.MeterReading, error) {
	out := make([]core.MeterReading, 0, len(rows))
	for _, row := range rows {
		r, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func pricesToCore(rows []PriceRow) ([]core.UtilityPrice, error) {
	out := make([]core.UtilityPrice, 0, len(rows))
	for _, row := range rows {
		p, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
