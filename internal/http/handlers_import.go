package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"household/internal/core"
	applog "household/internal/log"
)

// importTimeout allows for large legacy files.
const importTimeout = 60 * time.Second

type importView struct {
	Title   string
	Nav     string
	Created int
	Message string
	Error   string
}

func (s *Server) handleImportPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "import_page", importView{Title: "Import", Nav: "import"})
}

// handleImport reads the uploaded CSV and reports the number of created readings.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		msg := MsgImportNoFile
		if errors.As(err, &tooLarge) {
			msg = "Die Datei ist zu groß."
		}
		logger.InfoContext(ctx, "Import rejected",
			applog.FieldOperation, applog.OpImport,
			applog.FieldError, err.Error())
		s.renderWithTriggers(w, r, http.StatusUnprocessableEntity, "import_result", importView{Error: msg},
			NewHTMXResponse().TriggerErrorNotification(msg))
		return
	}
	defer file.Close()

	cctx, cancel := context.WithTimeout(ctx, importTimeout)
	defer cancel()
	created, err := s.backend.ImportCSV(cctx, header.Filename, file)
	if err != nil {
		// Rows stored before the failure must show up in charts and the dashboard.
		s.invalidateAllReadings()
		applog.NewStructuredLogger(logger).LogError(ctx, "CSV import failed", err,
			applog.ComponentImporter, applog.OpImport, applog.LogFields{
				"filename":                header.Filename,
				applog.FieldCreatedCount: created,
			})
		msg := core.UserMessage(core.ResourceReadings, err)
		b := NewHTMXResponse()
		if created > 0 {
			msg += " " + fmt.Sprintf(MsgImportPartial, created)
			b.TriggerImportCompleted(created)
		}
		b.TriggerErrorNotification(msg)
		s.renderWithTriggers(w, r, http.StatusUnprocessableEntity, "import_result",
			importView{Created: created, Error: msg}, b)
		return
	}

	s.invalidateAllReadings()
	logger.WithComponent(applog.ComponentImporter).InfoContext(ctx, "CSV import completed",
		applog.FieldOperation, applog.OpImport,
		applog.FieldCreatedCount, created,
		"filename", header.Filename)

	msg := fmt.Sprintf(MsgImportDone, created)
	s.renderWithTriggers(w, r, http.StatusOK, "import_result", importView{Created: created, Message: msg},
		NewHTMXResponse().
			TriggerImportCompleted(created).
			TriggerSuccessNotification(msg))
}
