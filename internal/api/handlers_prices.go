package api

import (
	"net/http"
	"strconv"
	"strings"

	"household/internal/core"
	applog "household/internal/log"
)

const meterTypeSegment = "meter-type"

func (s *Server) handleListPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := s.prices.ListPrices(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(prices))
}

func (s *Server) handleCreatePrice(w http.ResponseWriter, r *http.Request) {
	var req core.CreatePriceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, applog.OpParse, err)
		return
	}

	saved, err := s.prices.CreatePrice(r.Context(), req)
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}
	s.events.LogPriceCreated(r.Context(), saved)
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handlePricesByType(w http.ResponseWriter, r *http.Request) {
	s.listPricesByType(w, r, r.PathValue("type"))
}

// handlePriceSubroute serves {type}/current and the meter-type/{type} alias.
func (s *Server) handlePriceSubroute(w http.ResponseWriter, r *http.Request) {
	first, second := r.PathValue("first"), r.PathValue("second")
	switch {
	case first == meterTypeSegment:
		s.listPricesByType(w, r, second)
	case second == "current":
		s.currentPrice(w, r, first)
	default:
		s.handleNotFound(w, r)
	}
}

func (s *Server) handleCurrentPrice(w http.ResponseWriter, r *http.Request) {
	s.currentPrice(w, r, r.PathValue("type"))
}

func (s *Server) listPricesByType(w http.ResponseWriter, r *http.Request, rawType string) {
	t, err := core.ParseMeterType(rawType)
	if err != nil {
		s.writeError(w, r, applog.OpParse, err)
		return
	}
	prices, err := s.prices.ListPricesByType(r.Context(), t)
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(prices))
}

// currentPrice answers for ?date=YYYY-MM-DD, or today without it.
func (s *Server) currentPrice(w http.ResponseWriter, r *http.Request, rawType string) {
	t, err := core.ParseMeterType(rawType)
	if err != nil {
		s.writeError(w, r, applog.OpParse, err)
		return
	}

	var day core.Date
	if v := strings.TrimSpace(r.URL.Query().Get("date")); v != "" {
		day, err = core.ParseDate(v)
		if err != nil {
			s.writeError(w, r, applog.OpParse, &core.ValidationError{Field: "date", Message: "date must be YYYY-MM-DD"})
			return
		}
	}

	price, err := s.prices.CurrentPrice(r.Context(), t, day)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, price)
}

func (s *Server) handleDeletePrice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, r, applog.OpParse, &core.ValidationError{Field: "id", Message: "id must be a positive integer"})
		return
	}

	if err := s.prices.DeletePrice(r.Context(), id); err != nil {
		s.writeError(w, r, applog.OpDelete, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Utility price deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldPriceID, id)
	w.WriteHeader(http.StatusNoContent)
}
