package backend

import (
	"context"
	"io"
	"time"

	"household/internal/core"
)

type (
	// ReadingService is what the web UI needs from the meter reading backend.
	ReadingService interface {
		ListReadings(ctx context.Context) ([]core.MeterReading, error)
		ListReadingsByType(ctx context.Context, t core.MeterType) ([]core.MeterReading, error)
		// LatestReading returns nil when no reading of t exists.
		LatestReading(ctx context.Context, t core.MeterType) (*core.MeterReading, error)
		// Consumption returns nil when fewer than two readings of t exist.
		Consumption(ctx context.Context, t core.MeterType) (*core.ConsumptionResponse, error)
		CreateReading(ctx context.Context, req core.CreateReadingRequest) (core.MeterReading, error)
		// ImportCSV imports the legacy CSV and returns the number of created readings.
		ImportCSV(ctx context.Context, filename string, r io.Reader) (int, error)
	}

	// PriceService is what the web UI needs from the utility price backend.
	PriceService interface {
		ListPrices(ctx context.Context) ([]core.UtilityPrice, error)
		ListPricesByType(ctx context.Context, t core.MeterType) ([]core.UtilityPrice, error)
		// CurrentPrice returns nil when no price of t applies today.
		CurrentPrice(ctx context.Context, t core.MeterType) (*core.UtilityPrice, error)
		CreatePrice(ctx context.Context, req core.CreatePriceRequest) (core.UtilityPrice, error)
		DeletePrice(ctx context.Context, id int64) error
	}

	// Backend represents a unified backend interface that provides all necessary operations
	Backend interface {
		ReadingService
		PriceService
	}
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// API specific
	APIBaseURL string
	APITimeout time.Duration

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	APIBackend    BackendType = "api"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case APIBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
