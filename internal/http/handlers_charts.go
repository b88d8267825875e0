package http

import (
	"net/http"

	"household/internal/consumption"
	"household/internal/core"
	applog "household/internal/log"
)

type chartsView struct {
	Title   string
	Nav     string
	Types   []core.MeterType
	Params  ChartParams
	Years   []int
	Months  []int
	MonthsA []int
	MonthsB []int
	Single  consumption.Chart
	A       consumption.Chart
	B       consumption.Chart
	Error   string
}

// chart filters data by sel and computes its geometry. A whole year is
// labelled by month.
func chart(data consumption.TypeData, sel consumption.Selection) consumption.Chart {
	useMonths := sel.Year != consumption.All && sel.Month == consumption.All
	return consumption.NewChart(data.SeriesFor(sel), useMonths)
}

func (s *Server) loadCharts(r *http.Request) chartsView {
	params := ParseChartParams(r.URL.Query())
	view := chartsView{
		Title:  "Verbrauch",
		Nav:    "charts",
		Types:  core.AllMeterTypes(),
		Params: params,
	}

	ctx := r.Context()
	readings, err := s.readingsFor(ctx, params.Type)
	if err != nil {
		applog.NewStructuredLogger(applog.FromContext(ctx)).LogError(ctx, "Failed to load consumption data", err,
			applog.ComponentReadings, applog.OpList, applog.LogFields{applog.FieldMeterType: string(params.Type)})
		view.Error = MsgChartsLoad
		return view
	}

	data := consumption.Build(params.Type, readings)
	view.Years = data.Years

	params.Single = data.Normalize(params.Single)
	view.Months = data.Months(params.Single.Year)
	view.Single = chart(data, params.Single)

	if params.Compare {
		q := r.URL.Query()
		if q.Get("yearA") == "" {
			params.CompareA = params.Single
		}
		if q.Get("yearB") == "" && len(data.Years) > 0 {
			params.CompareB = consumption.Selection{Year: data.Years[0]}
		}
		params.CompareA = data.Normalize(params.CompareA)
		params.CompareB = data.Normalize(params.CompareB)
		view.MonthsA = data.Months(params.CompareA.Year)
		view.MonthsB = data.Months(params.CompareB.Year)
		view.A = chart(data, params.CompareA)
		view.B = chart(data, params.CompareB)
	}

	view.Params = params
	return view
}

func (s *Server) handleChartsPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "charts_page", s.loadCharts(r))
}

// handleChartsPanel returns the chart panel partial for filter changes.
func (s *Server) handleChartsPanel(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "charts_panel", s.loadCharts(r))
}
