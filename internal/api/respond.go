package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"household/internal/core"
	applog "household/internal/log"
)

const maxJSONBodyBytes = 1 << 20

// Problem is the JSON error body of every failed request.
type Problem struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err, "status", status)
	}
}

func writeProblem(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Problem{
		Status:  status,
		Error:   http.StatusText(status),
		Message: message,
	})
}

// writeError maps err onto a status. Unknown errors become 500 and their
// text stays in the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, ok := core.HTTPStatus(err)
	if !ok {
		status = http.StatusInternalServerError
	}

	logger := applog.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed",
			applog.FieldOperation, op,
			applog.FieldError, err.Error(),
			applog.FieldPath, r.URL.Path)
		writeProblem(w, status, "Internal server error")
		return
	}

	logger.InfoContext(r.Context(), "Request rejected",
		applog.FieldOperation, op,
		applog.FieldError, err.Error(),
		applog.FieldStatusCode, status)
	writeProblem(w, status, problemMessage(err))
}

// problemMessage prefers the validation text without its field prefix.
func problemMessage(err error) string {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	return err.Error()
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			return verr
		}
		return &core.ValidationError{Message: fmt.Sprintf("malformed JSON body: %v", err)}
	}
	return nil
}

func pathMeterType(r *http.Request, name string) (core.MeterType, error) {
	return core.ParseMeterType(r.PathValue(name))
}
