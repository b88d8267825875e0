package consumption

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"household/internal/core"
)

func reading(y, m, d int, value string, week int) core.MeterReading {
	r := core.MeterReading{
		MeterType:    core.Electricity,
		ReadingDate:  core.NewDate(y, m, d),
		ReadingValue: decimal.RequireFromString(value),
	}
	if week > 0 {
		r.ReadingWeek = &week
	}
	return r
}

func values(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

func pts(vals ...float64) []Point {
	out := make([]Point, len(vals))
	for i, v := range vals {
		out[i] = Point{Date: core.NewDate(2025, 1, i+1), Value: v}
	}
	return out
}

func TestPointsSortsAndClamps(t *testing.T) {
	readings := []core.MeterReading{
		reading(2025, 1, 15, "130", 3),
		reading(2025, 1, 1, "100", 1),
		reading(2025, 1, 8, "110.5", 2),
		reading(2025, 1, 22, "120", 0),
	}
	got := Points(readings)
	want := []float64{10.5, 19.5, 0}
	if !reflect.DeepEqual(values(got), want) {
		t.Fatalf("values = %v, want %v", values(got), want)
	}
	if got[0].Label != "KW 2" || got[2].Label != "KW -" {
		t.Fatalf("labels = %q, %q", got[0].Label, got[2].Label)
	}
	if !got[0].Date.Equal(core.NewDate(2025, 1, 8).Time) {
		t.Fatalf("point carries the later reading's date, got %s", got[0].Date)
	}

	if len(Points(nil)) != 0 || len(Points(readings[:1])) != 0 {
		t.Fatalf("fewer than two readings yield no points")
	}
}

func TestFilterOutliers(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"short series untouched", []float64{100, 0}, []float64{100, 0}},
		{"spike before zero dropped", []float64{10, 10, 10, 10, 10, 300, 0, 10}, []float64{10, 10, 10, 10, 10, 0, 10}},
		{"spike not followed by zero kept", []float64{10, 10, 200, 10}, []float64{10, 10, 200, 10}},
		{"moderate value before zero kept", []float64{10, 20, 0, 10}, []float64{10, 20, 0, 10}},
		{"value near mean before zero kept", []float64{2, 2, 2, 2, 2, 0}, []float64{2, 2, 2, 2, 2, 0}},
		{"last point never dropped", []float64{1, 1, 500}, []float64{1, 1, 500}},
		{"zeros before zero kept", []float64{0, 0, 0}, []float64{0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := values(FilterOutliers(pts(tt.in...)))
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("FilterOutliers(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFilterOutliersSpikeAgainstMean(t *testing.T) {
	// mean of non-zero values = (1+1+1+100)/4 = 25.75; 100 <= 128.75 so it stays
	in := []float64{1, 1, 1, 100, 0}
	if got := values(FilterOutliers(pts(in...))); !reflect.DeepEqual(got, in) {
		t.Fatalf("got %v", got)
	}
}

func seriesData() TypeData {
	readings := []core.MeterReading{
		reading(2024, 11, 1, "100", 44),
		reading(2024, 12, 1, "150", 48),
		reading(2025, 1, 5, "170", 1),
		reading(2025, 1, 12, "180", 2),
		reading(2025, 3, 2, "200", 9),
	}
	return Build(core.Electricity, readings)
}

func TestTypeDataSelections(t *testing.T) {
	data := seriesData()

	if !reflect.DeepEqual(data.Years, []int{2025, 2024}) {
		t.Fatalf("Years = %v", data.Years)
	}
	if got := data.Months(2025); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Fatalf("Months(2025) = %v", got)
	}
	if got := data.Months(All); got != nil {
		t.Fatalf("Months(All) = %v", got)
	}

	all := data.SeriesFor(Selection{})
	if len(all.Points) != 4 || all.MinValue != 10 || all.MaxValue != 50 {
		t.Fatalf("all series = %+v", all)
	}
	if all.Unit != "kWh" {
		t.Fatalf("unit = %q", all.Unit)
	}

	jan := data.SeriesFor(Selection{Year: 2025, Month: 1})
	if got := values(jan.Points); !reflect.DeepEqual(got, []float64{20, 10}) {
		t.Fatalf("jan values = %v", got)
	}

	empty := data.SeriesFor(Selection{Year: 2023})
	if len(empty.Points) != 0 || empty.MinValue != 0 || empty.MaxValue != 0 {
		t.Fatalf("empty series = %+v", empty)
	}
}

func TestNormalize(t *testing.T) {
	data := seriesData()
	tests := []struct {
		in, want Selection
	}{
		{Selection{}, Selection{}},
		{Selection{Year: 2023, Month: 1}, Selection{}},
		{Selection{Year: 2025, Month: 2}, Selection{Year: 2025}},
		{Selection{Year: 2025, Month: 3}, Selection{Year: 2025, Month: 3}},
		{Selection{Month: 3}, Selection{}},
	}
	for _, tt := range tests {
		if got := data.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
