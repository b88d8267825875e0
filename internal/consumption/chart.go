package consumption

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"household/internal/core"
)

const (
	ChartWidth   = 700
	ChartHeight  = 260
	ChartPadding = 28
	gridLines    = 4
)

var monthLabels = [12]string{
	"Jan", "Feb", "Maerz", "Apr", "Mai", "Jun",
	"Jul", "Aug", "Sep", "Okt", "Nov", "Dez",
}

type (
	// Chart is the render-ready geometry of a series.
	Chart struct {
		Series   Series
		Polyline string
		AreaPath string
		Markers  []Marker
		Grid     []GridLine
		Ticks    []Tick
		Width    int
		Height   int
	}

	Marker struct {
		X, Y  float64
		Label string
		Value string
		Date  string
	}

	GridLine struct {
		Y     float64
		Value string
	}

	// Tick is an x-axis label positioned in percent of the plot width.
	Tick struct {
		Left  float64
		Label string
	}
)

// MonthLabel returns the short German month name for 1..12.
func MonthLabel(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return monthLabels[month-1]
}

// NewChart computes the SVG geometry for s. Month ticks replace date ticks
// when a whole year is shown.
func NewChart(s Series, useMonthTicks bool) Chart {
	c := Chart{Series: s, Width: ChartWidth, Height: ChartHeight}
	if len(s.Points) == 0 {
		return c
	}

	coords := make([]string, len(s.Points))
	for i, p := range s.Points {
		x := PointX(i, len(s.Points))
		y := PointY(p.Value, s.MinValue, s.MaxValue)
		coords[i] = formatCoord(x) + "," + formatCoord(y)
		c.Markers = append(c.Markers, Marker{
			X:     x,
			Y:     y,
			Label: p.Label,
			Value: formatValue(p.Value) + " " + s.Unit,
			Date:  core.FormatShortDate(p.Date),
		})
	}
	c.Polyline = strings.Join(coords, " ")
	c.AreaPath = areaPath(coords)

	for line := 0; line <= gridLines; line++ {
		c.Grid = append(c.Grid, GridLine{
			Y:     GridY(line),
			Value: formatValue(GridValue(line, s)),
		})
	}
	c.Ticks = TickLabels(s.Points, useMonthTicks)
	return c
}

func PointX(index, total int) float64 {
	if total <= 1 {
		return ChartWidth / 2
	}
	width := float64(ChartWidth - ChartPadding*2)
	return ChartPadding + float64(index)/float64(total-1)*width
}

func PointY(value, minValue, maxValue float64) float64 {
	height := float64(ChartHeight - ChartPadding*2)
	rng := maxValue - minValue
	if rng == 0 {
		rng = 1
	}
	return ChartPadding + (1-(value-minValue)/rng)*height
}

func GridY(line int) float64 {
	height := float64(ChartHeight - ChartPadding*2)
	return ChartPadding + float64(line)/gridLines*height
}

// GridValue is the axis value printed next to a grid line.
func GridValue(line int, s Series) float64 {
	rng := s.MaxValue - s.MinValue
	if rng == 0 {
		rng = 1
	}
	return s.MaxValue - float64(line)/gridLines*rng
}

// XTicks picks the point indexes that get a date label.
func XTicks(count int) []int {
	if count <= 1 {
		if count == 1 {
			return []int{0}
		}
		return []int{}
	}
	if count <= 4 {
		ticks := make([]int, count)
		for i := range ticks {
			ticks[i] = i
		}
		return ticks
	}
	return []int{0, (count - 1) / 2, count - 1}
}

type indexedTick struct {
	index int
	label string
}

// monthTicks labels the first point of every month, ordered by month.
func monthTicks(points []Point) []indexedTick {
	first := map[int]int{}
	for i, p := range points {
		m := int(p.Date.Month())
		if _, ok := first[m]; !ok {
			first[m] = i
		}
	}
	months := make([]int, 0, len(first))
	for m := range first {
		months = append(months, m)
	}
	sort.Ints(months)

	ticks := make([]indexedTick, 0, len(months))
	for _, m := range months {
		ticks = append(ticks, indexedTick{index: first[m], label: MonthLabel(m)})
	}
	return ticks
}

// TickLabels positions the x-axis labels in percent.
func TickLabels(points []Point, useMonths bool) []Tick {
	total := len(points)
	if total == 0 {
		return nil
	}

	var ticks []indexedTick
	if useMonths {
		ticks = monthTicks(points)
	} else {
		for _, i := range XTicks(total) {
			ticks = append(ticks, indexedTick{index: i, label: core.FormatShortDate(points[i].Date)})
		}
	}

	out := make([]Tick, len(ticks))
	for i, t := range ticks {
		left := 50.0
		if total > 1 {
			left = float64(t.index) / float64(total-1) * 100
		}
		out[i] = Tick{Left: left, Label: t.label}
	}
	return out
}

func areaPath(coords []string) string {
	first, last := coords[0], coords[len(coords)-1]
	firstX, _, _ := strings.Cut(first, ",")
	lastX, _, _ := strings.Cut(last, ",")
	baseline := formatCoord(ChartHeight - ChartPadding)
	return fmt.Sprintf("M%s L%s L%s,%s L%s,%s Z",
		first, strings.Join(coords, " L"), lastX, baseline, firstX, baseline)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatValue(v float64) string {
	return core.FormatNumber(decimal.NewFromFloat(v))
}
