package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

var (
	ErrInvalid  = errors.New("invalid input")
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// ValidationError reports a rejected field value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// Resource names the entity an error relates to, used to pick user messages.
type Resource string

const (
	ResourceReadings Resource = "readings"
	ResourcePrices   Resource = "prices"
)

const (
	MsgBadRequest    = "Ungültige Daten. Bitte überprüfen Sie Ihre Eingaben."
	MsgNotFound      = "Die angeforderten Daten wurden nicht gefunden."
	MsgPriceConflict = "Ein Preis für diesen Zeitraum existiert bereits."
	MsgServerError   = "Ein Serverfehler ist aufgetreten. Bitte versuchen Sie es später erneut."
	MsgUnknownError  = "Ein unbekannter Fehler ist aufgetreten"
)

// HTTPStatus maps an error to the HTTP status it represents.
// The second result is false when the error carries no status, e.g. transport failures.
func HTTPStatus(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode(), true
	}
	switch {
	case errors.Is(err, ErrInvalid):
		return http.StatusBadRequest, true
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, true
	}
	return 0, false
}

// UserMessage returns the German message shown to the user for err.
func UserMessage(res Resource, err error) string {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return MsgUnknownError
	}
	status, ok := HTTPStatus(err)
	if !ok {
		if isTransportError(err) {
			return fmt.Sprintf("Fehler: %s", err.Error())
		}
		status = http.StatusInternalServerError
	}
	return StatusMessage(res, status)
}

// StatusMessage returns the German message for an HTTP status code.
func StatusMessage(res Resource, status int) string {
	switch status {
	case http.StatusBadRequest:
		return MsgBadRequest
	case http.StatusNotFound:
		return MsgNotFound
	case http.StatusConflict:
		if res == ResourcePrices {
			return MsgPriceConflict
		}
	case http.StatusInternalServerError:
		return MsgServerError
	}
	return fmt.Sprintf("Server-Fehler: %d", status)
}

func isTransportError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
