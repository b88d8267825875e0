package http

import (
	"encoding/json"
	"html/template"
	"net/http"

	"household/internal/core"
)

// Client-side events carried in HX-Trigger.
const (
	EventReadingCreated   = "reading:created"
	EventPriceCreated     = "price:created"
	EventPriceDeleted     = "price:deleted"
	EventImportCompleted  = "import:completed"
	EventFormReset        = "form:reset"
	EventShowNotification = "show-notification"
)

// Notification display times in milliseconds, read by app.js.
const (
	SuccessNotificationMs = 3000
	ErrorNotificationMs   = 5000
)

// NotificationType selects the toast style in app.js.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
)

// HTMXResponseBuilder collects the HX-Trigger events, status and body of a
// fragment response. Events are merged into a single JSON header on Write.
type HTMXResponseBuilder struct {
	events     map[string]any
	statusCode int
	body       []byte
}

// NewHTMXResponse starts a 200 response with no events.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		events:     make(map[string]any),
		statusCode: http.StatusOK,
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger sets event name to payload. A later call with the same name wins.
func (b *HTMXResponseBuilder) Trigger(name string, payload any) *HTMXResponseBuilder {
	b.events[name] = payload
	return b
}

func (b *HTMXResponseBuilder) TriggerReadingCreated(t core.MeterType) *HTMXResponseBuilder {
	return b.Trigger(EventReadingCreated, map[string]string{"meterType": string(t)})
}

func (b *HTMXResponseBuilder) TriggerPriceCreated(t core.MeterType) *HTMXResponseBuilder {
	return b.Trigger(EventPriceCreated, map[string]string{"meterType": string(t)})
}

func (b *HTMXResponseBuilder) TriggerPriceDeleted(id int64) *HTMXResponseBuilder {
	return b.Trigger(EventPriceDeleted, map[string]int64{"id": id})
}

func (b *HTMXResponseBuilder) TriggerImportCompleted(created int) *HTMXResponseBuilder {
	return b.Trigger(EventImportCompleted, map[string]int{"createdCount": created})
}

// TriggerFormReset asks the page to clear and refocus the submitted form.
func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.Trigger(EventFormReset, struct{}{})
}

// TriggerNotification shows a toast for durationMs.
func (b *HTMXResponseBuilder) TriggerNotification(kind NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger(EventShowNotification, map[string]any{
		"type":     string(kind),
		"message":  message,
		"duration": durationMs,
	})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, SuccessNotificationMs)
}

func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationError, message, ErrorNotificationMs)
}

// BodyHTML sets an HTML fragment as the body.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.body = []byte(html)
	return b
}

func (b *HTMXResponseBuilder) setTriggerHeader(w http.ResponseWriter) {
	if len(b.events) == 0 {
		return
	}
	if payload, err := json.Marshal(b.events); err == nil {
		w.Header().Set("HX-Trigger", string(payload))
	}
}

// Write sends headers, status and body.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	b.setTriggerHeader(w)
	if b.body != nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse renders message, escaped, as an error fragment.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(statusCode).
		BodyHTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}
