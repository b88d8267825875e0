package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// maxMessageRunes caps upstream messages copied into errors.
const maxMessageRunes = 200

// APIError is a non-2xx answer from the REST API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// StatusCode lets core.HTTPStatus map the error without knowing this package.
func (e *APIError) StatusCode() int { return e.Status }

// newAPIError reads the {"status","error","message"} body when present.
func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		msg = payload.Message
		if msg == "" {
			msg = payload.Error
		}
	} else {
		msg = strings.TrimSpace(string(body))
	}
	if r := []rune(msg); len(r) > maxMessageRunes {
		msg = string(r[:maxMessageRunes])
	}
	return &APIError{Status: status, Message: msg}
}
