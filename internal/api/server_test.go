package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"household/internal/core"
	"household/internal/importer"
	applog "household/internal/log"
	"household/internal/services"
	"household/internal/storage/memory"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	logger := applog.New(applog.Config{Level: applog.ParseLevel("error"), Output: io.Discard})
	s := NewServer(":0",
		services.NewReadingService(store, nil),
		services.NewPriceService(store),
		importer.New(store),
		Options{Logger: logger, RateLimitPerMinute: 100})
	t.Cleanup(func() { s.limiter.Stop() })
	return s, store
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) Problem {
	t.Helper()
	var p Problem
	if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode problem %q: %v", rr.Body.String(), err)
	}
	return p
}

func TestCreateAndListReadings(t *testing.T) {
	s, _ := newTestServer(t)

	rr := do(t, s, http.MethodPost, "/api/v1/meter-readings",
		`{"meterType":"ELECTRICITY","readingValue":1200.5,"readingDate":"2025-01-06","notes":"Zählertausch"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rr.Code, rr.Body.String())
	}
	var created core.MeterReading
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ID == 0 || created.ReadingWeek == nil || *created.ReadingWeek != 2 {
		t.Errorf("created = %+v, want id and ISO week 2", created)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	rr = do(t, s, http.MethodGet, "/api/v1/meter-readings/ELECTRICITY", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	var list []core.MeterReading
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].Notes != "Zählertausch" {
		t.Errorf("list = %+v", list)
	}

	rr = do(t, s, http.MethodGet, "/api/v1/meter-readings/WATER", "")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("empty list = %d %q, want 200 []", rr.Code, rr.Body.String())
	}
}

func TestCreateReadingRejections(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/v1/meter-readings",
		`{"meterType":"GAS","readingValue":500,"readingDate":"2025-01-06"}`)

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"lower than previous", `{"meterType":"GAS","readingValue":499,"readingDate":"2025-01-13"}`, http.StatusBadRequest, "New reading value (499) cannot be less than previous reading (500)"},
		{"negative", `{"meterType":"WATER","readingValue":-1,"readingDate":"2025-01-13"}`, http.StatusBadRequest, "reading value must be positive or zero"},
		{"missing date", `{"meterType":"WATER","readingValue":1}`, http.StatusBadRequest, "reading date is required"},
		{"malformed", `{"meterType":`, http.StatusBadRequest, ""},
		{"unknown type", `{"meterType":"OIL","readingValue":1,"readingDate":"2025-01-13"}`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, s, http.MethodPost, "/api/v1/meter-readings", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.status, rr.Body.String())
			}
			p := decodeProblem(t, rr)
			if p.Status != tt.status || p.Error != http.StatusText(tt.status) {
				t.Errorf("problem = %+v", p)
			}
			if tt.message != "" && p.Message != tt.message {
				t.Errorf("message = %q, want %q", p.Message, tt.message)
			}
		})
	}
}

func TestLatestAndConsumption(t *testing.T) {
	s, _ := newTestServer(t)

	if rr := do(t, s, http.MethodGet, "/api/v1/meter-readings/GAS/latest", ""); rr.Code != http.StatusNotFound {
		t.Errorf("latest without readings = %d, want 404", rr.Code)
	}

	do(t, s, http.MethodPost, "/api/v1/meter-readings", `{"meterType":"GAS","readingValue":100,"readingDate":"2025-01-01"}`)
	if rr := do(t, s, http.MethodGet, "/api/v1/meter-readings/gas/consumption", ""); rr.Code != http.StatusNotFound {
		t.Errorf("consumption with one reading = %d, want 404", rr.Code)
	}
	do(t, s, http.MethodPost, "/api/v1/meter-readings", `{"meterType":"GAS","readingValue":130,"readingDate":"2025-01-11"}`)

	rr := do(t, s, http.MethodGet, "/api/v1/meter-readings/GAS/latest", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("latest = %d", rr.Code)
	}
	var latest core.MeterReading
	if err := json.Unmarshal(rr.Body.Bytes(), &latest); err != nil {
		t.Fatal(err)
	}
	if latest.ReadingValue.String() != "130" {
		t.Errorf("latest value = %s, want 130", latest.ReadingValue)
	}

	rr = do(t, s, http.MethodGet, "/api/v1/meter-readings/GAS/consumption", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("consumption = %d", rr.Code)
	}
	var c core.ConsumptionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &c); err != nil {
		t.Fatal(err)
	}
	if c.Consumption.String() != "30" || c.DaysBetweenReadings != 10 {
		t.Errorf("consumption = %+v", c)
	}
	if c.AverageDailyConsumption == nil || c.AverageDailyConsumption.String() != "3" {
		t.Errorf("average = %v, want 3", c.AverageDailyConsumption)
	}
}

func TestPriceLifecycle(t *testing.T) {
	s, _ := newTestServer(t)

	rr := do(t, s, http.MethodPost, "/api/v1/utility-prices",
		`{"meterType":"ELECTRICITY","price":0.3150,"validFrom":"2025-01-01","validTo":"2025-07-01"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rr.Code, rr.Body.String())
	}
	var price core.UtilityPrice
	if err := json.Unmarshal(rr.Body.Bytes(), &price); err != nil {
		t.Fatal(err)
	}

	rr = do(t, s, http.MethodPost, "/api/v1/utility-prices",
		`{"meterType":"ELECTRICITY","price":0.3,"validFrom":"2025-03-01"}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("overlap = %d, want 409", rr.Code)
	}

	rr = do(t, s, http.MethodPost, "/api/v1/utility-prices",
		`{"meterType":"WATER","price":2,"validFrom":"2025-03-01"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("water price = %d, want 400", rr.Code)
	}

	for _, path := range []string{
		"/api/v1/utility-prices/ELECTRICITY/current?date=2025-03-15",
		"/api/v1/utility-prices/meter-type/ELECTRICITY/current?date=2025-03-15",
	} {
		rr = do(t, s, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, rr.Code)
		}
	}

	// validTo is exclusive on the server.
	if rr = do(t, s, http.MethodGet, "/api/v1/utility-prices/ELECTRICITY/current?date=2025-07-01", ""); rr.Code != http.StatusNotFound {
		t.Errorf("current on validTo = %d, want 404", rr.Code)
	}
	if rr = do(t, s, http.MethodGet, "/api/v1/utility-prices/ELECTRICITY/current?date=01.07.2025", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad date = %d, want 400", rr.Code)
	}

	for _, path := range []string{"/api/v1/utility-prices/ELECTRICITY", "/api/v1/utility-prices/meter-type/ELECTRICITY"} {
		rr = do(t, s, http.MethodGet, path, "")
		var list []core.UtilityPrice
		if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil || len(list) != 1 {
			t.Errorf("GET %s = %s (%v)", path, rr.Body.String(), err)
		}
	}

	rr = do(t, s, http.MethodDelete, "/api/v1/utility-prices/"+itoa(price.ID), "")
	if rr.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", rr.Code)
	}
	rr = do(t, s, http.MethodDelete, "/api/v1/utility-prices/"+itoa(price.ID), "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", rr.Code)
	}
	rr = do(t, s, http.MethodDelete, "/api/v1/utility-prices/abc", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("delete abc = %d, want 400", rr.Code)
	}
}

func TestImportReadings(t *testing.T) {
	s, store := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "zaehler.csv")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.WriteString(fw, "Datum,KW,Strom\n06.01.2025,2,1234,,,,,100,,,,,55\n")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/meter-readings/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("import = %d %s", rr.Code, rr.Body.String())
	}
	var result core.ImportResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.CreatedCount != 3 {
		t.Errorf("createdCount = %d, want 3", result.CreatedCount)
	}
	all, _ := store.ListReadings(context.Background())
	if len(all) != 3 {
		t.Errorf("stored = %d, want 3", len(all))
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/meter-readings/import", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rr = httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing file = %d, want 400", rr.Code)
	}
}

// failingImporter stores created rows and then fails.
type failingImporter struct{ created int }

func (f failingImporter) Import(context.Context, io.Reader) (int, error) {
	return f.created, errors.New("disk full")
}

func TestImportFailureReportsPartialCount(t *testing.T) {
	s, _ := newTestServer(t)
	s.importer = failingImporter{created: 2}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "x.csv")
	_, _ = io.WriteString(fw, "06.01.2025,2,1\n")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/meter-readings/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"createdCount":2}` {
		t.Errorf("body = %s", got)
	}
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	s, _ := newTestServer(t)

	rr := do(t, s, http.MethodGet, "/api/v1/health", "")
	var h HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &h); err != nil || h.Status != "UP" {
		t.Errorf("health = %d %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("security headers missing")
	}

	rr = do(t, s, http.MethodGet, "/api/v1/nothing", "")
	if rr.Code != http.StatusNotFound || decodeProblem(t, rr).Status != http.StatusNotFound {
		t.Errorf("unknown route = %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, s, http.MethodGet, "/api/v1/utility-prices/ELECTRICITY/history", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown subroute = %d, want 404", rr.Code)
	}

	rr = do(t, s, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "household_http_requests_total") {
		t.Errorf("metrics endpoint = %d", rr.Code)
	}
}

func TestRateLimitOnMutatingRequests(t *testing.T) {
	store := memory.New()
	logger := applog.New(applog.Config{Level: applog.ParseLevel("error"), Output: io.Discard})
	s := NewServer(":0", services.NewReadingService(store, nil), services.NewPriceService(store), importer.New(store),
		Options{Logger: logger, RateLimitPerMinute: 1})
	t.Cleanup(func() { s.limiter.Stop() })

	body := `{"meterType":"WATER","readingValue":1,"readingDate":"2025-01-01"}`
	if rr := do(t, s, http.MethodPost, "/api/v1/meter-readings", body); rr.Code != http.StatusCreated {
		t.Fatalf("first = %d", rr.Code)
	}
	rr := do(t, s, http.MethodPost, "/api/v1/meter-readings", body)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Errorf("second = %d, Retry-After %q", rr.Code, rr.Header().Get("Retry-After"))
	}
	if rr := do(t, s, http.MethodGet, "/api/v1/meter-readings", ""); rr.Code != http.StatusOK {
		t.Errorf("reads stay unlimited, got %d", rr.Code)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
