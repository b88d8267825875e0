// Package memory is an in-process Repository used by the memory backend and tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"household/internal/core"
	"household/internal/storage"
)

type Store struct {
	// txMu serializes InTx callers; mu guards the data.
	txMu       sync.Mutex
	mu         sync.Mutex
	readings   []core.MeterReading
	prices     []core.UtilityPrice
	syncStatus map[int64]string
	nextID     int64
	now        func() time.Time
}

var (
	_ storage.Repository = (*Store)(nil)
	_ storage.Transactor = (*Store)(nil)
)

func New() *Store {
	return &Store{
		syncStatus: map[int64]string{},
		now:        time.Now,
	}
}

func (s *Store) Close() error { return nil }

// InTx runs fn while no other InTx call is running. Writes are not rolled
// back when fn fails.
func (s *Store) InTx(_ context.Context, fn func(storage.Repository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(s)
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) CreateReading(_ context.Context, r core.MeterReading) (core.MeterReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.id()
	ts := core.Timestamp{Time: s.now().UTC()}
	r.CreatedAt, r.UpdatedAt = ts, ts
	r.Consumption, r.DaysSinceLastReading = nil, nil
	s.readings = append(s.readings, r)
	s.syncStatus[r.ID] = storage.SyncPending
	return r, nil
}

func (s *Store) GetReading(_ context.Context, id int64) (core.MeterReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.readings {
		if r.ID == id {
			return r, nil
		}
	}
	return core.MeterReading{}, fmt.Errorf("reading %d: %w", id, core.ErrNotFound)
}

func (s *Store) ListReadings(_ context.Context) ([]core.MeterReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedReadings(s.readings, func(core.MeterReading) bool { return true }), nil
}

func (s *Store) ListReadingsByType(_ context.Context, t core.MeterType) ([]core.MeterReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedReadings(s.readings, func(r core.MeterReading) bool { return r.MeterType == t }), nil
}

func (s *Store) LatestReadings(ctx context.Context, t core.MeterType, limit int) ([]core.MeterReading, error) {
	all, _ := s.ListReadingsByType(ctx, t)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *Store) ReadingExists(_ context.Context, t core.MeterType, date core.Date) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.ContainsFunc(s.readings, func(r core.MeterReading) bool {
		return r.MeterType == t && r.ReadingDate.Equal(date.Time)
	}), nil
}

func (s *Store) PendingSyncReadings(_ context.Context, limit int) ([]core.MeterReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.MeterReading
	for _, r := range s.readings {
		if s.syncStatus[r.ID] == storage.SyncPending {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkSynced(_ context.Context, id int64) error {
	return s.setStatus(id, storage.SyncSynced)
}

func (s *Store) MarkSyncError(_ context.Context, id int64) error {
	return s.setStatus(id, storage.SyncError)
}

// SyncStatus exposes the export state of a reading.
func (s *Store) SyncStatus(id int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncStatus[id]
}

func (s *Store) setStatus(id int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.syncStatus[id]; !ok {
		return fmt.Errorf("reading %d: %w", id, core.ErrNotFound)
	}
	s.syncStatus[id] = status
	return nil
}

func (s *Store) CreatePrice(_ context.Context, p core.UtilityPrice) (core.UtilityPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	ts := core.Timestamp{Time: s.now().UTC()}
	p.CreatedAt, p.UpdatedAt = ts, ts
	s.prices = append(s.prices, p)
	return p, nil
}

func (s *Store) ListPrices(_ context.Context) ([]core.UtilityPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedPrices(s.prices, func(core.UtilityPrice) bool { return true }), nil
}

func (s *Store) ListPricesByType(_ context.Context, t core.MeterType) ([]core.UtilityPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedPrices(s.prices, func(p core.UtilityPrice) bool { return p.MeterType == t }), nil
}

func (s *Store) OverlappingPrices(_ context.Context, t core.MeterType, from, to core.Date) ([]core.UtilityPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := sortedPrices(s.prices, func(p core.UtilityPrice) bool {
		return p.MeterType == t &&
			p.ValidFrom.Before(to) &&
			(p.ValidTo == nil || p.ValidTo.After(from))
	})
	slices.Reverse(out)
	return out, nil
}

func (s *Store) CurrentPrice(_ context.Context, t core.MeterType, day core.Date) (core.UtilityPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matches := sortedPrices(s.prices, func(p core.UtilityPrice) bool {
		return p.MeterType == t &&
			!p.ValidFrom.After(day) &&
			(p.ValidTo == nil || p.ValidTo.After(day))
	})
	if len(matches) == 0 {
		return core.UtilityPrice{}, fmt.Errorf("current %s price on %s: %w", t, day, core.ErrNotFound)
	}
	return matches[0], nil
}

func (s *Store) DeletePrice(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.prices, func(p core.UtilityPrice) bool { return p.ID == id })
	if i < 0 {
		return fmt.Errorf("price %d: %w", id, core.ErrNotFound)
	}
	s.prices = slices.Delete(s.prices, i, i+1)
	return nil
}

// sortedReadings filters and orders newest reading date first, then newest id.
func sortedReadings(in []core.MeterReading, keep func(core.MeterReading) bool) []core.MeterReading {
	out := make([]core.MeterReading, 0, len(in))
	for _, r := range in {
		if keep(r) {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b core.MeterReading) int {
		if c := b.ReadingDate.Compare(a.ReadingDate.Time); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

func sortedPrices(in []core.UtilityPrice, keep func(core.UtilityPrice) bool) []core.UtilityPrice {
	out := make([]core.UtilityPrice, 0, len(in))
	for _, p := range in {
		if keep(p) {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b core.UtilityPrice) int {
		if c := b.ValidFrom.Compare(a.ValidFrom.Time); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}
