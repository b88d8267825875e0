// Package consumption turns meter readings into consumption series for the
// charts page: successive differences, spike filtering, year/month buckets
// and SVG geometry.
package consumption

import (
	"fmt"
	"slices"
	"sort"

	"household/internal/core"
)

// All selects every year or month.
const All = 0

// outlierFactor is how far above the non-zero mean a spike must be before it
// is dropped.
const outlierFactor = 5

type (
	Point struct {
		Date  core.Date
		Value float64
		Label string
	}

	Series struct {
		Type     core.MeterType
		Points   []Point
		Unit     string
		MinValue float64
		MaxValue float64
	}

	// Selection picks a year and month; All (0) means no filter.
	Selection struct {
		Year  int
		Month int
	}

	// TypeData holds everything the charts page needs for one meter type.
	TypeData struct {
		Type   core.MeterType
		Points []Point
		Years  []int
	}
)

// Build computes the filtered consumption points and the reading years for a meter type.
func Build(t core.MeterType, readings []core.MeterReading) TypeData {
	return TypeData{
		Type:   t,
		Points: FilterOutliers(Points(readings)),
		Years:  ReadingYears(readings),
	}
}

// Points sorts readings by date and returns one point per successive pair,
// clamped at zero.
func Points(readings []core.MeterReading) []Point {
	sorted := slices.Clone(readings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ReadingDate.Before(sorted[j].ReadingDate)
	})

	points := make([]Point, 0, max(len(sorted)-1, 0))
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		diff := cur.ReadingValue.Sub(prev.ReadingValue).InexactFloat64()
		label := "KW -"
		if cur.ReadingWeek != nil {
			label = fmt.Sprintf("KW %d", *cur.ReadingWeek)
		}
		points = append(points, Point{
			Date:  cur.ReadingDate,
			Value: max(0, diff),
			Label: label,
		})
	}
	return points
}

// FilterOutliers drops isolated spikes: a positive value followed by a zero
// that exceeds five times the mean of the non-zero values. Series shorter than
// three points are returned unchanged.
func FilterOutliers(points []Point) []Point {
	if len(points) < 3 {
		return points
	}

	var sum float64
	var n int
	for _, p := range points {
		if p.Value > 0 {
			sum += p.Value
			n++
		}
	}
	var mean float64
	if n > 0 {
		mean = sum / float64(n)
	}

	out := make([]Point, 0, len(points))
	for i, p := range points {
		if i == len(points)-1 || points[i+1].Value != 0 || p.Value <= 0 {
			out = append(out, p)
			continue
		}
		if mean != 0 && p.Value <= mean*outlierFactor {
			out = append(out, p)
		}
	}
	return out
}

// FilterBy keeps the points inside the selection.
func FilterBy(points []Point, sel Selection) []Point {
	if sel.Year == All {
		return points
	}
	out := make([]Point, 0, len(points))
	for _, p := range points {
		if p.Date.Year() != sel.Year {
			continue
		}
		if sel.Month != All && int(p.Date.Month()) != sel.Month {
			continue
		}
		out = append(out, p)
	}
	return out
}

// SeriesFor filters the type's points, re-applies the spike filter and
// computes the value range.
func (d TypeData) SeriesFor(sel Selection) Series {
	points := FilterOutliers(FilterBy(d.Points, sel))
	s := Series{Type: d.Type, Points: points, Unit: d.Type.Unit()}
	for i, p := range points {
		if i == 0 || p.Value < s.MinValue {
			s.MinValue = p.Value
		}
		if i == 0 || p.Value > s.MaxValue {
			s.MaxValue = p.Value
		}
	}
	return s
}

// Months returns the months with points in year, ascending.
func (d TypeData) Months(year int) []int {
	if year == All {
		return nil
	}
	seen := map[int]bool{}
	var months []int
	for _, p := range d.Points {
		if p.Date.Year() != year {
			continue
		}
		m := int(p.Date.Month())
		if !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}
	sort.Ints(months)
	return months
}

// Normalize resets a selection that refers to a year or month without data.
func (d TypeData) Normalize(sel Selection) Selection {
	if sel.Year != All && !slices.Contains(d.Years, sel.Year) {
		return Selection{}
	}
	if sel.Year == All {
		sel.Month = All
	}
	if sel.Month != All && !slices.Contains(d.Months(sel.Year), sel.Month) {
		sel.Month = All
	}
	return sel
}

// ReadingYears returns the distinct reading years, newest first.
func ReadingYears(readings []core.MeterReading) []int {
	seen := map[int]bool{}
	var years []int
	for _, r := range readings {
		y := r.ReadingDate.Year()
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}
