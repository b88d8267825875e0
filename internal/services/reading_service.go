package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"household/internal/core"
	"household/internal/storage"
)

// ReadingPublisher announces stored readings to the export pipeline.
type ReadingPublisher interface {
	PublishReadingRecorded(ctx context.Context, readingID int64, meterType core.MeterType) error
}

// ReadingService holds the meter reading rules on top of a repository.
type ReadingService struct {
	repo      storage.ReadingRepository
	publisher ReadingPublisher
}

// NewReadingService creates the service. publisher may be nil.
func NewReadingService(repo storage.ReadingRepository, publisher ReadingPublisher) *ReadingService {
	return &ReadingService{
		repo:      repo,
		publisher: publisher,
	}
}

// CreateReading validates and stores a reading, then publishes it for export.
func (s *ReadingService) CreateReading(ctx context.Context, req core.CreateReadingRequest) (core.MeterReading, error) {
	if err := req.Validate(); err != nil {
		return core.MeterReading{}, err
	}

	var saved core.MeterReading
	err := storage.InTx(ctx, s.repo, func(repo storage.ReadingRepository) error {
		latest, err := repo.LatestReadings(ctx, req.MeterType, 1)
		if err != nil {
			return fmt.Errorf("load previous reading: %w", err)
		}
		if len(latest) > 0 && req.ReadingValue.LessThan(latest[0].ReadingValue) {
			slog.WarnContext(ctx, "Reading value below previous reading",
				"meter_type", req.MeterType,
				"reading_value", req.ReadingValue.String(),
				"previous_value", latest[0].ReadingValue.String())
			return &core.ValidationError{
				Field: "readingValue",
				Message: fmt.Sprintf("New reading value (%s) cannot be less than previous reading (%s)",
					req.ReadingValue.String(), latest[0].ReadingValue.String()),
			}
		}

		week := req.ReadingWeek
		if week == nil {
			w := core.ISOWeek(req.ReadingDate)
			week = &w
		}

		saved, err = repo.CreateReading(ctx, core.MeterReading{
			MeterType:    req.MeterType,
			ReadingValue: req.ReadingValue,
			ReadingWeek:  week,
			ReadingDate:  req.ReadingDate,
			Notes:        req.Notes,
		})
		if err != nil {
			return fmt.Errorf("save reading: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.MeterReading{}, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishReadingRecorded(ctx, saved.ID, saved.MeterType); err != nil {
			// Reading is stored; the periodic sync scan picks it up later.
			slog.ErrorContext(ctx, "Failed to publish reading recorded message",
				"id", saved.ID, "error", err)
		}
	} else {
		slog.DebugContext(ctx, "No publisher configured, skipping reading recorded message")
	}

	return s.withConsumption(ctx, saved)
}

func (s *ReadingService) ListReadings(ctx context.Context) ([]core.MeterReading, error) {
	readings, err := s.repo.ListReadings(ctx)
	if err != nil {
		return nil, err
	}
	return s.annotate(ctx, readings)
}

func (s *ReadingService) ListReadingsByType(ctx context.Context, t core.MeterType) ([]core.MeterReading, error) {
	if !t.IsValid() {
		return nil, &core.ValidationError{Field: "meterType", Message: fmt.Sprintf("unknown meter type %q", t)}
	}
	readings, err := s.repo.ListReadingsByType(ctx, t)
	if err != nil {
		return nil, err
	}
	return s.annotate(ctx, readings)
}

// LatestReading returns core.ErrNotFound when no reading of t exists.
func (s *ReadingService) LatestReading(ctx context.Context, t core.MeterType) (core.MeterReading, error) {
	if !t.IsValid() {
		return core.MeterReading{}, &core.ValidationError{Field: "meterType", Message: fmt.Sprintf("unknown meter type %q", t)}
	}
	latest, err := s.repo.LatestReadings(ctx, t, 2)
	if err != nil {
		return core.MeterReading{}, err
	}
	if len(latest) == 0 {
		return core.MeterReading{}, fmt.Errorf("no readings for %s: %w", t, core.ErrNotFound)
	}
	return derive(latest), nil
}

// Consumption compares the two newest readings of t.
// It returns core.ErrNotFound with fewer than two readings.
func (s *ReadingService) Consumption(ctx context.Context, t core.MeterType) (core.ConsumptionResponse, error) {
	if !t.IsValid() {
		return core.ConsumptionResponse{}, &core.ValidationError{Field: "meterType", Message: fmt.Sprintf("unknown meter type %q", t)}
	}
	latest, err := s.repo.LatestReadings(ctx, t, 2)
	if err != nil {
		return core.ConsumptionResponse{}, err
	}
	if len(latest) < 2 {
		return core.ConsumptionResponse{}, fmt.Errorf("need two readings of %s, have %d: %w", t, len(latest), core.ErrNotFound)
	}
	return ConsumptionBetween(latest[0], latest[1]), nil
}

// ConsumptionBetween builds the consumption summary from current to previous.
func ConsumptionBetween(current, previous core.MeterReading) core.ConsumptionResponse {
	consumption := current.ReadingValue.Sub(previous.ReadingValue)
	days := previous.ReadingDate.DaysUntil(current.ReadingDate)

	resp := core.ConsumptionResponse{
		MeterType:           current.MeterType,
		CurrentReading:      current.ReadingValue,
		PreviousReading:     previous.ReadingValue,
		Consumption:         consumption,
		CurrentReadingDate:  current.ReadingDate,
		PreviousReadingDate: previous.ReadingDate,
		DaysBetweenReadings: days,
	}
	if days > 0 {
		avg := consumption.DivRound(decimal.NewFromInt(days), 2)
		resp.AverageDailyConsumption = &avg
	}
	return resp
}

// annotate fills the derived fields of the newest reading of each type in readings.
func (s *ReadingService) annotate(ctx context.Context, readings []core.MeterReading) ([]core.MeterReading, error) {
	latestByType := make(map[core.MeterType]core.MeterReading)
	for _, r := range readings {
		if _, ok := latestByType[r.MeterType]; ok {
			continue
		}
		top, err := s.repo.LatestReadings(ctx, r.MeterType, 2)
		if err != nil {
			return nil, err
		}
		if len(top) > 0 {
			latestByType[r.MeterType] = derive(top)
		}
	}

	out := make([]core.MeterReading, len(readings))
	for i, r := range readings {
		if d, ok := latestByType[r.MeterType]; ok && d.ID == r.ID {
			r = d
		}
		out[i] = r
	}
	return out, nil
}

func (s *ReadingService) withConsumption(ctx context.Context, r core.MeterReading) (core.MeterReading, error) {
	out, err := s.annotate(ctx, []core.MeterReading{r})
	if err != nil {
		slog.WarnContext(ctx, "Failed to derive consumption for new reading", "id", r.ID, "error", err)
		return r, nil
	}
	return out[0], nil
}

// derive returns top[0] with consumption fields set when a previous reading exists.
func derive(top []core.MeterReading) core.MeterReading {
	r := top[0]
	if len(top) < 2 {
		return r
	}
	c := ConsumptionBetween(top[0], top[1])
	r.Consumption = &c.Consumption
	days := c.DaysBetweenReadings
	r.DaysSinceLastReading = &days
	return r
}
