package sheets

import (
	"context"

	"household/internal/core"
)

// Ports for outbound adapters.
type (
	// ReadingExporter writes a reading into the yearly meter spreadsheet.
	ReadingExporter interface {
		ExportReading(ctx context.Context, r core.MeterReading) (rowRef string, err error)
	}
)
