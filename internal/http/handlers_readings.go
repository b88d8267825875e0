package http

import (
	"context"
	"net/http"

	"household/internal/core"
	applog "household/internal/log"
)

const recentReadingsLimit = 20

type readingsView struct {
	Title  string
	Nav    string
	Types  []core.MeterType
	Form   ReadingForm
	Recent []core.MeterReading
	Error  string
}

func (s *Server) recentReadings(ctx context.Context) ([]core.MeterReading, string) {
	ctx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()

	readings, err := s.backend.ListReadings(ctx)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to list readings",
			applog.FieldOperation, applog.OpList,
			applog.FieldError, err.Error())
		return nil, core.UserMessage(core.ResourceReadings, err)
	}
	if len(readings) > recentReadingsLimit {
		readings = readings[:recentReadingsLimit]
	}
	return readings, ""
}

func (s *Server) handleReadingsPage(w http.ResponseWriter, r *http.Request) {
	recent, errMsg := s.recentReadings(r.Context())
	preselected := ParseMeterTypeParam(r.URL.Query().Get("type"), "")
	s.render(w, r, http.StatusOK, "readings_page", readingsView{
		Title:  "Zählerstände",
		Nav:    "readings",
		Types:  core.AllMeterTypes(),
		Form:   NewReadingForm(preselected),
		Recent: recent,
		Error:  errMsg,
	})
}

// handleRecentReadings returns the history table partial.
func (s *Server) handleRecentReadings(w http.ResponseWriter, r *http.Request) {
	recent, errMsg := s.recentReadings(r.Context())
	s.render(w, r, http.StatusOK, "readings_recent", readingsView{Recent: recent, Error: errMsg})
}

func (s *Server) handleCreateReading(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Ungültiges Anfrageformat").Write(w)
		return
	}

	form := ParseReadingForm(parser)
	view := readingsView{Types: core.AllMeterTypes(), Form: form}
	req, ok := view.Form.Validate()
	if !ok {
		logger.InfoContext(ctx, "Reading form rejected",
			applog.FieldOperation, applog.OpCreate,
			"fields", len(view.Form.Errors))
		s.renderWithTriggers(w, r, http.StatusUnprocessableEntity, "reading_form", view, NewHTMXResponse())
		return
	}

	cctx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()
	saved, err := s.backend.CreateReading(cctx, req)
	if err != nil {
		applog.NewStructuredLogger(logger).LogError(ctx, "Failed to create reading", err,
			applog.ComponentReadings, applog.OpCreate, nil)
		s.renderWithTriggers(w, r, http.StatusUnprocessableEntity, "reading_form", view,
			NewHTMXResponse().TriggerErrorNotification(core.UserMessage(core.ResourceReadings, err)))
		return
	}

	s.invalidateReadings(saved.MeterType)
	applog.NewStructuredLogger(logger).LogReadingCreated(ctx, saved)

	view.Form = NewReadingForm("")
	s.renderWithTriggers(w, r, http.StatusOK, "reading_form", view,
		NewHTMXResponse().
			TriggerReadingCreated(saved.MeterType).
			TriggerFormReset().
			TriggerSuccessNotification(MsgReadingCreated))
}
