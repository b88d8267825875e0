package adapters

import (
	"context"
	"errors"
	"io"

	"household/internal/core"
	"household/internal/importer"
	"household/internal/services"
)

// LocalAdapter serves the web client from in-process services instead of the REST API.
// Not found answers become nil results, the same way the HTTP client treats a 404.
type LocalAdapter struct {
	readings *services.ReadingService
	prices   *services.PriceService
	importer *importer.Importer
}

func NewLocalAdapter(readings *services.ReadingService, prices *services.PriceService, im *importer.Importer) *LocalAdapter {
	return &LocalAdapter{
		readings: readings,
		prices:   prices,
		importer: im,
	}
}

func (a *LocalAdapter) ListReadings(ctx context.Context) ([]core.MeterReading, error) {
	return a.readings.ListReadings(ctx)
}

func (a *LocalAdapter) ListReadingsByType(ctx context.Context, t core.MeterType) ([]core.MeterReading, error) {
	return a.readings.ListReadingsByType(ctx, t)
}

func (a *LocalAdapter) LatestReading(ctx context.Context, t core.MeterType) (*core.MeterReading, error) {
	r, err := a.readings.LatestReading(ctx, t)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (a *LocalAdapter) Consumption(ctx context.Context, t core.MeterType) (*core.ConsumptionResponse, error) {
	c, err := a.readings.Consumption(ctx, t)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (a *LocalAdapter) CreateReading(ctx context.Context, req core.CreateReadingRequest) (core.MeterReading, error) {
	return a.readings.CreateReading(ctx, req)
}

// ImportCSV ignores filename; the importer only needs the content.
func (a *LocalAdapter) ImportCSV(ctx context.Context, _ string, r io.Reader) (int, error) {
	return a.importer.Import(ctx, r)
}

func (a *LocalAdapter) ListPrices(ctx context.Context) ([]core.UtilityPrice, error) {
	return a.prices.ListPrices(ctx)
}

func (a *LocalAdapter) ListPricesByType(ctx context.Context, t core.MeterType) ([]core.UtilityPrice, error) {
	return a.prices.ListPricesByType(ctx, t)
}

func (a *LocalAdapter) CurrentPrice(ctx context.Context, t core.MeterType) (*core.UtilityPrice, error) {
	p, err := a.prices.CurrentPrice(ctx, t, core.Date{})
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *LocalAdapter) CreatePrice(ctx context.Context, req core.CreatePriceRequest) (core.UtilityPrice, error) {
	return a.prices.CreatePrice(ctx, req)
}

func (a *LocalAdapter) DeletePrice(ctx context.Context, id int64) error {
	return a.prices.DeletePrice(ctx, id)
}
