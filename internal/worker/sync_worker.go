package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"household/internal/amqp"
	"household/internal/core"
	"household/internal/services"
)

// MessageConsumer delivers reading recorded messages until ctx is done.
type MessageConsumer interface {
	ConsumeReadingRecorded(ctx context.Context, handler func(context.Context, *amqp.ReadingRecordedMessage) error) error
}

// SyncWorker exports readings to Google Sheets, driven by AMQP messages
// with a periodic scan as backup for lost messages.
type SyncWorker struct {
	processor *services.SyncProcessor
	batchSize int
}

func NewSyncWorker(processor *services.SyncProcessor, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = services.DefaultSyncProcessorConfig().BatchSize
	}
	return &SyncWorker{
		processor: processor,
		batchSize: batchSize,
	}
}

// HandleReadingRecorded exports the reading named by msg.
// A reading that no longer exists is acknowledged and skipped.
func (w *SyncWorker) HandleReadingRecorded(ctx context.Context, msg *amqp.ReadingRecordedMessage) error {
	slog.InfoContext(ctx, "Processing reading recorded message",
		"message_id", msg.MessageID,
		"reading_id", msg.ReadingID,
		"meter_type", msg.MeterType)

	err := w.processor.SyncReadingByID(ctx, msg.ReadingID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Reading from message not found, skipping",
			"message_id", msg.MessageID,
			"reading_id", msg.ReadingID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("sync reading %d: %w", msg.ReadingID, err)
	}
	return nil
}

// StartupSyncCheck exports readings left pending while the worker was down.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed := w.processor.ProcessPending(ctx, w.batchSize*5)
	if synced == 0 && failed == 0 {
		slog.InfoContext(ctx, "No pending readings found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"synced", synced,
		"errors", failed)
	return nil
}

// Run performs the startup check, then consumes messages and runs the
// periodic scan until ctx is cancelled. consumer may be nil.
func (w *SyncWorker) Run(ctx context.Context, consumer MessageConsumer) error {
	if err := w.StartupSyncCheck(ctx); err != nil {
		slog.WarnContext(ctx, "Startup sync check failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if consumer != nil {
		g.Go(func() error {
			err := consumer.ConsumeReadingRecorded(gctx, w.HandleReadingRecorded)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		slog.WarnContext(ctx, "No AMQP consumer configured, relying on periodic scan only")
	}

	g.Go(func() error {
		if err := w.processor.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return w.processor.Stop(context.WithoutCancel(gctx))
	})

	return g.Wait()
}
