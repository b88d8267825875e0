// Package dashboard assembles the per-meter summary shown on the start page.
package dashboard

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"household/internal/consumption"
	"household/internal/core"
	applog "household/internal/log"
)

// DefaultGasFactor converts m³ of gas to kWh, the unit gas prices are quoted in.
var DefaultGasFactor = decimal.RequireFromString("10.55")

var (
	sevenDays  = decimal.NewFromInt(7)
	upFactor   = decimal.RequireFromString("1.05")
	downFactor = decimal.RequireFromString("0.95")
)

type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

func (t Trend) Icon() string {
	switch t {
	case TrendUp:
		return "↗"
	case TrendDown:
		return "↘"
	default:
		return "→"
	}
}

// Class returns the CSS modifier class for the trend badge.
func (t Trend) Class() string { return "trend--" + string(t) }

// Source is the subset of the backend the dashboard reads from.
type Source interface {
	ListReadingsByType(ctx context.Context, t core.MeterType) ([]core.MeterReading, error)
	LatestReading(ctx context.Context, t core.MeterType) (*core.MeterReading, error)
	Consumption(ctx context.Context, t core.MeterType) (*core.ConsumptionResponse, error)
	CurrentPrice(ctx context.Context, t core.MeterType) (*core.UtilityPrice, error)
}

// Row is one meter card. Only the display fields are set when loading failed.
type Row struct {
	Type  core.MeterType
	Label string
	Icon  string
	Color string
	Unit  string

	Latest      *core.MeterReading
	Consumption *core.ConsumptionResponse
	Price       *core.UtilityPrice

	Consumption7d *decimal.Decimal
	Cost7d        *decimal.Decimal
	Trend         Trend
}

// HasData reports whether a latest reading was loaded.
func (r Row) HasData() bool { return r.Latest != nil }

type Summary struct {
	Rows []Row
	// Failed is set when any fetch failed and the rows are display-only.
	Failed bool
}

type Service struct {
	src       Source
	gasFactor decimal.Decimal
}

// New builds a dashboard service. A non-positive gasFactor falls back to DefaultGasFactor.
func New(src Source, gasFactor decimal.Decimal) *Service {
	if !gasFactor.IsPositive() {
		gasFactor = DefaultGasFactor
	}
	return &Service{src: src, gasFactor: gasFactor}
}

type fetched struct {
	readings    []core.MeterReading
	latest      *core.MeterReading
	consumption *core.ConsumptionResponse
	price       *core.UtilityPrice
}

// Load fetches every meter type in parallel and joins the results before
// building the rows. Any failure yields empty display rows.
func (s *Service) Load(ctx context.Context) Summary {
	types := core.AllMeterTypes()
	results := make([]fetched, len(types))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range types {
		res := &results[i]
		g.Go(func() (err error) {
			res.readings, err = s.src.ListReadingsByType(gctx, t)
			return err
		})
		g.Go(func() (err error) {
			res.latest, err = s.src.LatestReading(gctx, t)
			return err
		})
		g.Go(func() (err error) {
			res.consumption, err = s.src.Consumption(gctx, t)
			return err
		})
		if t.IsPriced() {
			g.Go(func() (err error) {
				res.price, err = s.src.CurrentPrice(gctx, t)
				return err
			})
		}
	}

	if err := g.Wait(); err != nil {
		applog.NewStructuredLogger(applog.FromContext(ctx)).LogError(ctx, "Failed to load dashboard data", err,
			applog.ComponentDashboard, applog.OpRead, nil)
		rows := make([]Row, len(types))
		for i, t := range types {
			rows[i] = emptyRow(t)
		}
		return Summary{Rows: rows, Failed: true}
	}

	rows := make([]Row, len(types))
	for i, t := range types {
		rows[i] = s.buildRow(t, results[i])
	}
	return Summary{Rows: rows}
}

func emptyRow(t core.MeterType) Row {
	return Row{
		Type:  t,
		Label: t.Label(),
		Icon:  t.Icon(),
		Color: t.Color(),
		Unit:  t.Unit(),
		Trend: TrendStable,
	}
}

func (s *Service) buildRow(t core.MeterType, f fetched) Row {
	row := emptyRow(t)
	row.Latest = f.latest
	row.Consumption = f.consumption
	row.Price = f.price
	row.Trend = TrendOf(consumption.Points(f.readings))

	if f.consumption != nil {
		row.Consumption7d = Estimate7d(f.consumption.AverageDailyConsumption)
	}
	if row.Consumption7d != nil && f.price != nil {
		row.Cost7d = EstimateCost(t, *row.Consumption7d, f.price.PricePerUnit, s.gasFactor)
	}
	return row
}

// Estimate7d projects the average daily consumption onto a week.
func Estimate7d(avg *decimal.Decimal) *decimal.Decimal {
	if avg == nil {
		return nil
	}
	v := avg.Mul(sevenDays)
	return &v
}

// EstimateCost prices a consumption. Gas is metered in m³ but priced per kWh,
// so it is converted with gasFactor first.
func EstimateCost(t core.MeterType, consumption7d, price, gasFactor decimal.Decimal) *decimal.Decimal {
	units := consumption7d
	if t == core.Gas {
		units = units.Mul(gasFactor)
	}
	v := units.Mul(price)
	return &v
}

// TrendOf compares the last two consumption points with a 5% dead band.
func TrendOf(points []consumption.Point) Trend {
	if len(points) < 2 {
		return TrendStable
	}
	last := decimal.NewFromFloat(points[len(points)-1].Value)
	prev := decimal.NewFromFloat(points[len(points)-2].Value)
	switch {
	case last.GreaterThan(prev.Mul(upFactor)):
		return TrendUp
	case last.LessThan(prev.Mul(downFactor)):
		return TrendDown
	default:
		return TrendStable
	}
}
