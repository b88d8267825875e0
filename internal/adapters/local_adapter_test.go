package adapters

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"household/internal/core"
	"household/internal/importer"
	"household/internal/services"
	"household/internal/storage/memory"
)

func newAdapter() *LocalAdapter {
	store := memory.New()
	return NewLocalAdapter(
		services.NewReadingService(store, nil),
		services.NewPriceService(store),
		importer.New(store),
	)
}

func TestLocalAdapterMissingDataIsNil(t *testing.T) {
	a := newAdapter()
	ctx := context.Background()

	latest, err := a.LatestReading(ctx, core.Gas)
	if err != nil || latest != nil {
		t.Fatalf("LatestReading = %v, %v; want nil, nil", latest, err)
	}
	c, err := a.Consumption(ctx, core.Gas)
	if err != nil || c != nil {
		t.Fatalf("Consumption = %v, %v; want nil, nil", c, err)
	}
	p, err := a.CurrentPrice(ctx, core.Electricity)
	if err != nil || p != nil {
		t.Fatalf("CurrentPrice = %v, %v; want nil, nil", p, err)
	}
}

func TestLocalAdapterPassesValidationErrors(t *testing.T) {
	a := newAdapter()
	if _, err := a.LatestReading(context.Background(), "STEAM"); !errors.Is(err, core.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if _, err := a.CurrentPrice(context.Background(), core.Water); !errors.Is(err, core.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for water price, got %v", err)
	}
}

func TestLocalAdapterReadingsAndPrices(t *testing.T) {
	a := newAdapter()
	ctx := context.Background()

	for i, v := range []string{"100", "110"} {
		_, err := a.CreateReading(ctx, core.CreateReadingRequest{
			MeterType:    core.Electricity,
			ReadingValue: decimal.RequireFromString(v),
			ReadingDate:  core.NewDate(2025, 1, 1+i*5),
		})
		if err != nil {
			t.Fatalf("CreateReading: %v", err)
		}
	}
	c, err := a.Consumption(ctx, core.Electricity)
	if err != nil || c == nil || c.Consumption.String() != "10" {
		t.Fatalf("Consumption = %+v, %v", c, err)
	}

	p, err := a.CreatePrice(ctx, core.CreatePriceRequest{
		MeterType:    core.Electricity,
		PricePerUnit: decimal.RequireFromString("0.3150"),
		ValidFrom:    core.NewDate(2020, 1, 1),
	})
	if err != nil {
		t.Fatalf("CreatePrice: %v", err)
	}
	cur, err := a.CurrentPrice(ctx, core.Electricity)
	if err != nil || cur == nil || cur.ID != p.ID {
		t.Fatalf("CurrentPrice = %+v, %v", cur, err)
	}
	if err := a.DeletePrice(ctx, p.ID); err != nil {
		t.Fatalf("DeletePrice: %v", err)
	}
	if err := a.DeletePrice(ctx, p.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalAdapterImportCSV(t *testing.T) {
	a := newAdapter()
	n, err := a.ImportCSV(context.Background(), "readings.csv", strings.NewReader("06.01.2025,2,1234\n"))
	if err != nil || n != 1 {
		t.Fatalf("ImportCSV = %d, %v", n, err)
	}
	list, _ := a.ListReadingsByType(context.Background(), core.Electricity)
	if len(list) != 1 {
		t.Fatalf("readings = %d", len(list))
	}
}
