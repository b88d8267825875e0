package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"household/internal/core"
	"household/internal/storage"
	"household/internal/storage/memory"
)

type fakeExporter struct {
	mu       sync.Mutex
	failIDs  map[int64]bool
	exported []int64
}

func (f *fakeExporter) ExportReading(_ context.Context, r core.MeterReading) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[r.ID] {
		return "", errors.New("quota exceeded")
	}
	f.exported = append(f.exported, r.ID)
	return "sheet!A1", nil
}

func (f *fakeExporter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.exported)
}

func seedReadings(t *testing.T, store *memory.Store, n int) []core.MeterReading {
	t.Helper()
	var out []core.MeterReading
	for i := 0; i < n; i++ {
		r, err := store.CreateReading(context.Background(), core.MeterReading{
			MeterType:    core.Electricity,
			ReadingValue: decimal.NewFromInt(int64(100 + i)),
			ReadingDate:  core.NewDate(2025, 1, 1+i),
		})
		if err != nil {
			t.Fatalf("CreateReading: %v", err)
		}
		out = append(out, r)
	}
	return out
}

func TestDefaultSyncProcessorConfig(t *testing.T) {
	config := DefaultSyncProcessorConfig()

	if config.PollInterval != 30*time.Second {
		t.Errorf("expected PollInterval 30s, got %v", config.PollInterval)
	}
	if config.BatchSize != 10 {
		t.Errorf("expected BatchSize 10, got %d", config.BatchSize)
	}
}

func TestNewSyncProcessorFillsDefaults(t *testing.T) {
	p := NewSyncProcessor(nil, nil, SyncProcessorConfig{})
	if p.config != DefaultSyncProcessorConfig() {
		t.Errorf("config = %+v", p.config)
	}

	p = NewSyncProcessor(nil, nil, SyncProcessorConfig{PollInterval: 5 * time.Second, BatchSize: 20})
	if p.config.PollInterval != 5*time.Second || p.config.BatchSize != 20 {
		t.Errorf("custom config not kept: %+v", p.config)
	}
}

func TestSyncProcessor_ProcessPending(t *testing.T) {
	store := memory.New()
	readings := seedReadings(t, store, 3)
	exporter := &fakeExporter{failIDs: map[int64]bool{readings[1].ID: true}}
	p := NewSyncProcessor(store, exporter, DefaultSyncProcessorConfig())

	synced, failed := p.ProcessPending(context.Background(), 10)
	if synced != 2 || failed != 1 {
		t.Fatalf("synced=%d failed=%d", synced, failed)
	}

	wantStatus := map[int64]string{
		readings[0].ID: storage.SyncSynced,
		readings[1].ID: storage.SyncError,
		readings[2].ID: storage.SyncSynced,
	}
	for id, want := range wantStatus {
		if got := store.SyncStatus(id); got != want {
			t.Errorf("reading %d status = %q, want %q", id, got, want)
		}
	}

	synced, failed = p.ProcessPending(context.Background(), 10)
	if synced != 0 || failed != 0 {
		t.Errorf("second pass should find nothing, got synced=%d failed=%d", synced, failed)
	}
}

func TestSyncProcessor_ProcessPendingRespectsLimit(t *testing.T) {
	store := memory.New()
	seedReadings(t, store, 5)
	exporter := &fakeExporter{}
	p := NewSyncProcessor(store, exporter, DefaultSyncProcessorConfig())

	if synced, _ := p.ProcessPending(context.Background(), 2); synced != 2 {
		t.Fatalf("synced = %d, want 2", synced)
	}
	if exporter.count() != 2 {
		t.Fatalf("exported = %d", exporter.count())
	}
}

func TestSyncProcessor_SyncReadingByIDNotFound(t *testing.T) {
	p := NewSyncProcessor(memory.New(), &fakeExporter{}, DefaultSyncProcessorConfig())
	err := p.SyncReadingByID(context.Background(), 42)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSyncProcessor_StartStop(t *testing.T) {
	store := memory.New()
	seedReadings(t, store, 2)
	exporter := &fakeExporter{}
	p := NewSyncProcessor(store, exporter, SyncProcessorConfig{PollInterval: 10 * time.Millisecond, BatchSize: 10})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if p.IsRunning() {
		t.Fatal("processor should not be running initially")
	}
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}

	deadline := time.Now().Add(2 * time.Second)
	for exporter.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if exporter.count() != 2 {
		t.Fatalf("exported = %d, want 2", exporter.count())
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.IsRunning() {
		t.Error("processor should not be running after Stop")
	}
	if err := p.Stop(stopCtx); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}
