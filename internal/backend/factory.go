package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"household/internal/adapters"
	"household/internal/amqp"
	"household/internal/apiclient"
	"household/internal/importer"
	"household/internal/services"
	"household/internal/storage"
	"household/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case APIBackend:
		return f.createAPIBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createAPIBackend(config Config) (*BackendResult, error) {
	client := apiclient.New(config.APIBaseURL, config.APITimeout)

	f.logger.Info("Initialized API backend",
		"base_url", config.APIBaseURL,
		"timeout", config.APITimeout)

	return &BackendResult{
		Backend: client,
		Cleanup: nil, // HTTP client holds no resources
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// AMQP is optional; readings stay pending and the worker scan picks them up.
	var publisher services.ReadingPublisher
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
			amqpClient = nil
		} else {
			publisher = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	adapter := adapters.NewLocalAdapter(
		services.NewReadingService(sqliteRepo, publisher),
		services.NewPriceService(sqliteRepo),
		importer.New(sqliteRepo),
	)

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", amqpClient != nil)

	return &BackendResult{
		Backend: adapter,
		Cleanup: func() error {
			var errs []error
			if amqpClient != nil {
				errs = append(errs, amqpClient.Close())
			}
			errs = append(errs, sqliteRepo.Close())
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	store := memory.New()
	adapter := adapters.NewLocalAdapter(
		services.NewReadingService(store, nil),
		services.NewPriceService(store),
		importer.New(store),
	)

	f.logger.Info("Initialized memory backend")

	return &BackendResult{
		Backend: adapter,
		Cleanup: store.Close,
	}, nil
}
