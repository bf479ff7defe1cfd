package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Events raised in the browser through HX-Trigger. app.js listens for
// form:reset and show-notification; the filter form reloads the dashboard
// on ledger:changed.
const (
	EventFormReset     = "form:reset"
	EventLedgerChanged = "ledger:changed"
	EventNotification  = "show-notification"
)

const notificationDuration = 3000 // ms

type (
	formResetEvent struct {
		Form string `json:"form"`
	}
	ledgerChangedEvent struct {
		Kind string `json:"kind"`
	}
	notificationEvent struct {
		Type     NotificationType `json:"type"`
		Message  string           `json:"message"`
		Duration int              `json:"duration"`
	}
)

type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
)

// HTMXResponseBuilder assembles a fragment response and its HX-Trigger events.
type HTMXResponseBuilder struct {
	triggers   map[string]any
	statusCode int
	body       []byte
	headers    http.Header
}

func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
		headers:    make(http.Header),
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds an event; data is marshalled as the event detail.
func (b *HTMXResponseBuilder) Trigger(name string, data any) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerFormReset clears the form with the given element id.
func (b *HTMXResponseBuilder) TriggerFormReset(formID string) *HTMXResponseBuilder {
	return b.Trigger(EventFormReset, formResetEvent{Form: formID})
}

// TriggerLedgerChanged tells the dashboard to reload after a write.
func (b *HTMXResponseBuilder) TriggerLedgerChanged(kind string) *HTMXResponseBuilder {
	return b.Trigger(EventLedgerChanged, ledgerChangedEvent{Kind: kind})
}

func (b *HTMXResponseBuilder) TriggerNotification(notifType NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger(EventNotification, notificationEvent{Type: notifType, Message: message, Duration: durationMs})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, notificationDuration)
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers.Set(name, value)
	return b
}

// BodyHTML sets an HTML fragment body. Callers escape user text.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.headers.Set("Content-Type", "text/html; charset=utf-8")
	b.body = []byte(html)
	return b
}

// Write sends headers, HX-Trigger, status and body in that order.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, values := range b.headers {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}

	if len(b.triggers) > 0 {
		if triggerJSON, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// Saved answers a successful insert: the form is cleared, the dashboard
// reloads and message is shown both inline and as a toast.
func Saved(formID, kind, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		TriggerFormReset(formID).
		TriggerLedgerChanged(kind).
		TriggerSuccessNotification(message).
		BodyHTML(`<div class="success" role="status">` + template.HTMLEscapeString(message) + `</div>`)
}

// ErrorResponse renders message (escaped) in an alert fragment.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(statusCode).
		BodyHTML(`<div class="error" role="alert">` + template.HTMLEscapeString(message) + `</div>`)
}

// SaveFailed reports a rejected insert with the underlying message.
// Validation problems answer 422, store failures 500. No triggers are set
// so the form keeps what was typed.
func SaveFailed(validation bool, message string) *HTMXResponseBuilder {
	status := http.StatusInternalServerError
	if validation {
		status = http.StatusUnprocessableEntity
	}
	return ErrorResponse(status, "Save failed: "+message)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}
