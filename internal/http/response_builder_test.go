package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"household/internal/core"
)

func TestHTMXResponseBuilder_StatusHeadersBody(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusUnprocessableEntity).
		BodyHTML(`<form id="reading-form"></form>`).
		Write(w)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
	if got := w.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", got)
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Error("HX-Trigger set without triggers")
	}
	if w.Body.String() != `<form id="reading-form"></form>` {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerReadingCreated(core.Gas).
		TriggerFormReset().
		TriggerSuccessNotification("Zählerstand erfolgreich erfasst!").
		Write(w)

	trigger := w.Header().Get("HX-Trigger")
	if trigger == "" {
		t.Fatal("HX-Trigger header not set")
	}

	// Verify trigger contains expected events
	expectedParts := []string{
		`"reading:created"`,
		`"form:reset"`,
		`"show-notification"`,
		`"meterType":"GAS"`,
		`"type":"success"`,
		`"duration":3000`,
	}
	for _, part := range expectedParts {
		if !strings.Contains(trigger, part) {
			t.Errorf("HX-Trigger missing %q: %s", part, trigger)
		}
	}
}

func TestHTMXResponseBuilder_PriceEvents(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerPriceCreated(core.Electricity).
		TriggerPriceDeleted(42).
		TriggerImportCompleted(7).
		TriggerErrorNotification("Ein Preis für diesen Zeitraum existiert bereits.").
		Write(w)

	trigger := w.Header().Get("HX-Trigger")
	for _, part := range []string{
		`"price:created":{"meterType":"ELECTRICITY"}`,
		`"price:deleted":{"id":42}`,
		`"import:completed":{"createdCount":7}`,
		`"duration":5000`,
		`"type":"error"`,
	} {
		if !strings.Contains(trigger, part) {
			t.Errorf("HX-Trigger missing %q: %s", part, trigger)
		}
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		builder    *HTMXResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{"bad request", BadRequestError("Ungültige Preis-ID"), http.StatusBadRequest,
			`<div class="error">Ungültige Preis-ID</div>`},
		{"unprocessable", ErrorResponse(http.StatusUnprocessableEntity, MsgImportNoFile), http.StatusUnprocessableEntity,
			`<div class="error">` + MsgImportNoFile + `</div>`},
		{"server error", InternalServerError(core.MsgServerError), http.StatusInternalServerError,
			`<div class="error">` + core.MsgServerError + `</div>`},
		{"not found", ErrorResponse(http.StatusNotFound, core.MsgNotFound), http.StatusNotFound,
			`<div class="error">` + core.MsgNotFound + `</div>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestErrorResponse_EscapesMessage(t *testing.T) {
	w := httptest.NewRecorder()
	BadRequestError(`Notiz <b>"Keller"</b>`).Write(w)

	body := w.Body.String()
	if strings.Contains(body, "<b>") {
		t.Errorf("message not escaped: %s", body)
	}
	if !strings.Contains(body, "&lt;b&gt;") {
		t.Errorf("escaped entities missing: %s", body)
	}
}

func TestErrorResponseWithNotification(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorResponse(http.StatusTooManyRequests, "Zu viele Anfragen.").
		TriggerErrorNotification("Zu viele Anfragen.").
		Write(w)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d", w.Code)
	}
	trigger := w.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, `"type":"error"`) || !strings.Contains(trigger, "Zu viele Anfragen.") {
		t.Errorf("HX-Trigger = %s", trigger)
	}
}
