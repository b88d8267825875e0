package api

import (
	"errors"
	"net/http"

	"household/internal/core"
	applog "household/internal/log"
)

func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	readings, err := s.readings.ListReadings(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(readings))
}

func (s *Server) handleCreateReading(w http.ResponseWriter, r *http.Request) {
	var req core.CreateReadingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, applog.OpParse, err)
		return
	}

	saved, err := s.readings.CreateReading(r.Context(), req)
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}
	s.events.LogReadingCreated(r.Context(), saved)
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleReadingsByType(w http.ResponseWriter, r *http.Request) {
	t, err := pathMeterType(r, "type")
	if err != nil {
		s.writeError(w, r, applog.OpParse, err)
		return
	}
	readings, err := s.readings.ListReadingsByType(r.Context(), t)
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(readings))
}

func (s *Server) handleLatestReading(w http.ResponseWriter, r *http.Request) {
	t, err := pathMeterType(r, "type")
	if err != nil {
		s.writeError(w, r, applog.OpParse, err)
		return
	}
	reading, err := s.readings.LatestReading(r.Context(), t)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleConsumption(w http.ResponseWriter, r *http.Request) {
	t, err := pathMeterType(r, "type")
	if err != nil {
		s.writeError(w, r, applog.OpParse, err)
		return
	}
	c, err := s.readings.Consumption(r.Context(), t)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleImportReadings accepts the legacy CSV as multipart field "file".
func (s *Server) handleImportReadings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			s.writeError(w, r, applog.OpImport, &core.ValidationError{Field: "file", Message: "file is required"})
			return
		}
		s.writeError(w, r, applog.OpImport, &core.ValidationError{Field: "file", Message: "invalid multipart upload"})
		return
	}
	defer file.Close()

	if header.Size == 0 {
		writeJSON(w, http.StatusBadRequest, core.ImportResult{})
		return
	}

	logger.InfoContext(ctx, "CSV import requested", "filename", header.Filename, "size", header.Size)
	created, err := s.importer.Import(ctx, file)
	if err != nil {
		// Rows before the failing one stay stored and are reported.
		logger.ErrorContext(ctx, "CSV import failed",
			applog.FieldOperation, applog.OpImport,
			applog.FieldError, err.Error(),
			applog.FieldCreatedCount, created,
			"filename", header.Filename)
		writeJSON(w, http.StatusInternalServerError, core.ImportResult{CreatedCount: created})
		return
	}

	logger.InfoContext(ctx, "CSV import completed",
		applog.FieldOperation, applog.OpImport,
		applog.FieldCreatedCount, created)
	writeJSON(w, http.StatusOK, core.ImportResult{CreatedCount: created})
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
