package memory

import (
	"context"
	"fmt"
	"sync"

	"household/internal/core"
	ports "household/internal/sheets"
)

// Store keeps exported readings in process, keyed by their row reference.
type Store struct {
	mu   sync.Mutex
	rows []core.MeterReading
}

var _ ports.ReadingExporter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// ExportReading stores the reading and returns a synthetic row reference.
func (s *Store) ExportReading(_ context.Context, r core.MeterReading) (string, error) {
	if !r.MeterType.IsValid() {
		return "", &core.ValidationError{Field: "meterType", Message: fmt.Sprintf("unknown meter type %q", r.MeterType)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, r)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of everything exported so far.
func (s *Store) Rows() []core.MeterReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.MeterReading(nil), s.rows...)
}
