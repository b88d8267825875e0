package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"household/internal/core"
	"household/internal/metrics"
	"household/internal/sheets"
	"household/internal/storage"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending readings (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of readings exported per poll cycle (default: 10)
	BatchSize int
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    10,
	}
}

// SyncStore is the storage the processor reads pending readings from.
type SyncStore interface {
	storage.SyncRepository
	GetReading(ctx context.Context, id int64) (core.MeterReading, error)
}

// SyncProcessor exports pending readings to the spreadsheet on a fixed interval.
type SyncProcessor struct {
	storage  SyncStore
	exporter sheets.ReadingExporter
	config   SyncProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncProcessor(store SyncStore, exporter sheets.ReadingExporter, config SyncProcessorConfig) *SyncProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultSyncProcessorConfig().BatchSize
	}
	return &SyncProcessor{
		storage:  store,
		exporter: exporter,
		config:   config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop signals the loop and waits for the current batch to finish.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.ProcessPending(ctx, p.config.BatchSize)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessPending(ctx, p.config.BatchSize)
		}
	}
}

// ProcessPending exports up to limit pending readings and returns how many succeeded.
func (p *SyncProcessor) ProcessPending(ctx context.Context, limit int) (synced, failed int) {
	pending, err := p.storage.PendingSyncReadings(ctx, limit)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load pending readings", "error", err)
		return 0, 0
	}
	if len(pending) == 0 {
		return 0, 0
	}

	slog.DebugContext(ctx, "Processing sync batch", "count", len(pending))

	for _, r := range pending {
		if ctx.Err() != nil {
			break
		}
		if err := p.SyncReading(ctx, r); err != nil {
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Sync batch completed", "synced", synced, "errors", failed)
	return synced, failed
}

// SyncReadingByID loads a reading and exports it.
func (p *SyncProcessor) SyncReadingByID(ctx context.Context, id int64) error {
	r, err := p.storage.GetReading(ctx, id)
	if err != nil {
		return fmt.Errorf("get reading %d: %w", id, err)
	}
	return p.SyncReading(ctx, r)
}

// SyncReading exports r and records the outcome on the reading.
func (p *SyncProcessor) SyncReading(ctx context.Context, r core.MeterReading) error {
	ref, err := p.exporter.ExportReading(ctx, r)
	metrics.ObserveExport(err)
	if err != nil {
		slog.WarnContext(ctx, "Failed to export reading",
			"id", r.ID,
			"meter_type", r.MeterType,
			"error", err)
		if markErr := p.storage.MarkSyncError(ctx, r.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", r.ID, "error", markErr)
		}
		return fmt.Errorf("export reading %d: %w", r.ID, err)
	}

	if err := p.storage.MarkSynced(ctx, r.ID); err != nil {
		// Export succeeded; the row may be written again on the next scan.
		slog.ErrorContext(ctx, "Failed to mark reading as synced", "id", r.ID, "error", err)
	}

	slog.InfoContext(ctx, "Exported reading to spreadsheet",
		"id", r.ID,
		"meter_type", r.MeterType,
		"reading_date", r.ReadingDate.String(),
		"sheets_ref", ref)
	return nil
}
