package services

import (
	"context"
	"fmt"
	"log/slog"

	"household/internal/core"
	"household/internal/storage"
)

// PriceService keeps utility price windows free of overlaps.
type PriceService struct {
	repo  storage.PriceRepository
	today func() core.Date
}

func NewPriceService(repo storage.PriceRepository) *PriceService {
	return &PriceService{
		repo:  repo,
		today: core.Today,
	}
}

func (s *PriceService) CreatePrice(ctx context.Context, req core.CreatePriceRequest) (core.UtilityPrice, error) {
	if err := req.Validate(); err != nil {
		return core.UtilityPrice{}, err
	}

	var validTo *core.Date
	if req.ValidTo != nil && !req.ValidTo.IsZero() {
		validTo = req.ValidTo
	}
	effectiveTo := storage.OpenEnded
	if validTo != nil {
		effectiveTo = *validTo
	}

	var saved core.UtilityPrice
	err := storage.InTx(ctx, s.repo, func(repo storage.PriceRepository) error {
		overlapping, err := repo.OverlappingPrices(ctx, req.MeterType, req.ValidFrom, effectiveTo)
		if err != nil {
			return fmt.Errorf("check overlapping prices: %w", err)
		}
		if len(overlapping) > 0 {
			slog.WarnContext(ctx, "Price window overlaps existing prices",
				"meter_type", req.MeterType,
				"valid_from", req.ValidFrom.String(),
				"overlapping", len(overlapping))
			until := "indefinite"
			if validTo != nil {
				until = validTo.String()
			}
			return fmt.Errorf("validity period %s to %s overlaps %d %s price(s): %w",
				req.ValidFrom, until, len(overlapping), req.MeterType, core.ErrConflict)
		}

		saved, err = repo.CreatePrice(ctx, core.UtilityPrice{
			MeterType:    req.MeterType,
			PricePerUnit: req.PricePerUnit,
			ValidFrom:    req.ValidFrom,
			ValidTo:      validTo,
		})
		if err != nil {
			return fmt.Errorf("save price: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.UtilityPrice{}, err
	}
	return saved, nil
}

func (s *PriceService) ListPrices(ctx context.Context) ([]core.UtilityPrice, error) {
	return s.repo.ListPrices(ctx)
}

func (s *PriceService) ListPricesByType(ctx context.Context, t core.MeterType) ([]core.UtilityPrice, error) {
	if err := requirePriced(t); err != nil {
		return nil, err
	}
	return s.repo.ListPricesByType(ctx, t)
}

// CurrentPrice returns the price of t valid on day, or today when day is zero.
func (s *PriceService) CurrentPrice(ctx context.Context, t core.MeterType, day core.Date) (core.UtilityPrice, error) {
	if err := requirePriced(t); err != nil {
		return core.UtilityPrice{}, err
	}
	if day.IsZero() {
		day = s.today()
	}
	return s.repo.CurrentPrice(ctx, t, day)
}

func (s *PriceService) DeletePrice(ctx context.Context, id int64) error {
	if err := s.repo.DeletePrice(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Deleted utility price", "id", id)
	return nil
}

func requirePriced(t core.MeterType) error {
	if !t.IsPriced() {
		return &core.ValidationError{Field: "meterType", Message: fmt.Sprintf("meter type %q does not carry a price", t)}
	}
	return nil
}
