package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"household/internal/core"
)

func newBufferLogger(component string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: slog.LevelDebug, Component: component, Output: &buf}), &buf
}

func TestLoggerComponentIsNotDuplicated(t *testing.T) {
	l, buf := newBufferLogger(ComponentAPI)
	l.With(FieldRequestID, "req_1").WithComponent(ComponentReadings).Info("hello")

	line := buf.String()
	if strings.Count(line, "component=") != 1 || !strings.Contains(line, "component=readings") {
		t.Errorf("line = %q", line)
	}
	if !strings.Contains(line, "request_id=req_1") {
		t.Errorf("request id lost: %q", line)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelForStatus(t *testing.T) {
	if LevelForStatus(201) != slog.LevelInfo || LevelForStatus(404) != slog.LevelWarn || LevelForStatus(503) != slog.LevelError {
		t.Error("unexpected level mapping")
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	l, buf := newBufferLogger(ComponentHTTP)
	h := Middleware(l)(RequestIDMiddleware(func(*http.Request) string { return "req_abc" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("inside")
		})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(buf.String(), "request_id=req_abc") {
		t.Errorf("log = %q", buf.String())
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if got := FromContext(context.Background()).Component(); got != "unknown" {
		t.Errorf("component = %q", got)
	}
}

func TestStructuredLogger(t *testing.T) {
	l, buf := newBufferLogger(ComponentAPI)
	sl := NewStructuredLogger(l)
	ctx := context.Background()

	sl.LogReadingCreated(ctx, core.MeterReading{
		ID:           3,
		MeterType:    core.Gas,
		ReadingValue: decimal.RequireFromString("12.5"),
		ReadingDate:  core.NewDate(2025, 1, 2),
	})
	sl.LogError(ctx, "Create failed", errors.New("boom"), ComponentPrices, OpCreate, nil)

	out := buf.String()
	for _, want := range []string{"reading_id=3", "meter_type=GAS", "reading_date=2025-01-02", "error=boom", "component=prices"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/utility-prices", nil)
	sl.LogHTTPEnd(ctx, req, "req_1", 409, 12, "10.0.0.1")
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "status_code=409") {
		t.Errorf("http end = %q", buf.String())
	}
}
