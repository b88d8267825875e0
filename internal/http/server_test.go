package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"household/internal/adapters"
	"household/internal/backend"
	"household/internal/core"
	"household/internal/importer"
	applog "household/internal/log"
	"household/internal/services"
	"household/internal/storage/memory"
)

// countingBackend counts per-type reading list calls to observe the cache.
// A non-nil importErr fails ImportCSV after the rows were stored.
type countingBackend struct {
	backend.Backend
	listByType atomic.Int32
	importErr  error
}

func (c *countingBackend) ImportCSV(ctx context.Context, filename string, r io.Reader) (int, error) {
	n, err := c.Backend.ImportCSV(ctx, filename, r)
	if err == nil && c.importErr != nil {
		return n, c.importErr
	}
	return n, err
}

func (c *countingBackend) ListReadingsByType(ctx context.Context, t core.MeterType) ([]core.MeterReading, error) {
	c.listByType.Add(1)
	return c.Backend.ListReadingsByType(ctx, t)
}

func newTestServer(t *testing.T) (*Server, *countingBackend) {
	t.Helper()
	store := memory.New()
	be := &countingBackend{Backend: adapters.NewLocalAdapter(
		services.NewReadingService(store, nil),
		services.NewPriceService(store),
		importer.New(store),
	)}
	logger := applog.New(applog.Config{Level: applog.ParseLevel("error"), Output: io.Discard})
	s, err := NewServer(":0", be, Options{Logger: logger, RateLimitPerMinute: 100})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
	})
	return s, be
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func postForm(s *Server, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)
	return rr
}

func TestPagesAndHealth(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		path string
		want string
	}{
		{"/", "Strom"},
		{"/ui/dashboard", "dashboard-summary"},
		{"/readings", "Neuer Zählerstand"},
		{"/ui/readings", "Noch keine Zählerstände erfasst."},
		{"/prices", "Preisverlauf"},
		{"/ui/prices", "Keine Preise hinterlegt."},
		{"/charts", "charts-filter"},
		{"/ui/charts?type=GAS", "Keine Verbrauchsdaten"},
		{"/import", "CSV-Datei"},
		{"/healthz", "ok"},
		{"/readyz", "ready"},
		{"/static/app.js", "show-notification"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := get(s, tt.path)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
			}
			if !strings.Contains(rr.Body.String(), tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
		})
	}

	rr := get(s, "/")
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing security headers")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestCreateReadingValidationAndSuccess(t *testing.T) {
	s, _ := newTestServer(t)

	rr := postForm(s, "/readings", url.Values{
		"meterType":    {"ELECTRICITY"},
		"readingValue": {"abc"},
		"readingDate":  {"2025-01-06"},
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid value status = %d, want 422", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), MsgReadingFormat) {
		t.Errorf("form not re-rendered with error: %s", rr.Body.String())
	}
	if strings.Contains(rr.Header().Get("HX-Trigger"), EventReadingCreated) {
		t.Error("rejected form must not trigger reading:created")
	}

	rr = postForm(s, "/readings", url.Values{
		"meterType":    {"ELECTRICITY"},
		"readingValue": {"1234,5"},
		"readingDate":  {"2025-01-06"},
		"notes":        {"Ablesung Keller"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("create status = %d, body %s", rr.Code, rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	for _, want := range []string{EventReadingCreated, EventFormReset, EventShowNotification, MsgReadingCreated} {
		if !strings.Contains(trigger, want) {
			t.Errorf("HX-Trigger %q missing %q", trigger, want)
		}
	}

	rr = get(s, "/ui/readings")
	if !strings.Contains(rr.Body.String(), "Ablesung Keller") || !strings.Contains(rr.Body.String(), "1.234,5") {
		t.Errorf("recent readings missing the new row: %s", rr.Body.String())
	}
}

func TestCreateReadingBackendRejection(t *testing.T) {
	s, _ := newTestServer(t)

	form := url.Values{"meterType": {"GAS"}, "readingValue": {"500"}, "readingDate": {"2025-01-06"}}
	if rr := postForm(s, "/readings", form); rr.Code != http.StatusOK {
		t.Fatalf("first create = %d", rr.Code)
	}

	form.Set("readingValue", "400")
	form.Set("readingDate", "2025-01-13")
	rr := postForm(s, "/readings", form)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("lower value status = %d, want 422", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), `"error"`) {
		t.Errorf("HX-Trigger = %q, want error notification", rr.Header().Get("HX-Trigger"))
	}
}

func TestReadingsCacheInvalidatedOnCreate(t *testing.T) {
	s, be := newTestServer(t)

	get(s, "/ui/charts?type=GAS")
	get(s, "/ui/charts?type=GAS")
	if got := be.listByType.Load(); got != 1 {
		t.Fatalf("backend calls after two chart loads = %d, want 1", got)
	}

	rr := postForm(s, "/readings", url.Values{"meterType": {"GAS"}, "readingValue": {"10"}, "readingDate": {"2025-01-06"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("create = %d", rr.Code)
	}
	get(s, "/ui/charts?type=GAS")
	if got := be.listByType.Load(); got != 2 {
		t.Errorf("backend calls after create = %d, want 2", got)
	}
}

func TestChartsRenderSeries(t *testing.T) {
	s, be := newTestServer(t)
	ctx := context.Background()
	for i, v := range []int64{100, 110, 125, 130} {
		_, err := be.CreateReading(ctx, core.CreateReadingRequest{
			MeterType:    core.Water,
			ReadingValue: decimal.NewFromInt(v),
			ReadingDate:  core.NewDate(2024, 3, 4+7*i),
		})
		if err != nil {
			t.Fatalf("seed reading %d: %v", i, err)
		}
	}

	rr := get(s, "/ui/charts?type=WATER&year=2024")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"<polyline", "Maerz", `value="2024" selected`} {
		if !strings.Contains(body, want) {
			t.Errorf("chart panel missing %q", want)
		}
	}

	rr = get(s, "/ui/charts?type=WATER&compare=true&yearB=2024")
	if n := strings.Count(rr.Body.String(), "<polyline"); n != 2 {
		t.Errorf("compare mode polylines = %d, want 2", n)
	}
}

func TestPriceCreateAndDelete(t *testing.T) {
	s, be := newTestServer(t)

	rr := postForm(s, "/prices", url.Values{"meterType": {"WATER"}, "price": {"0,3"}, "validFrom": {"2025-01-01"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("water price status = %d, want 422", rr.Code)
	}

	rr = postForm(s, "/prices", url.Values{"meterType": {"GAS"}, "price": {"0,1234"}, "validFrom": {"2025-01-01"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("create price = %d, body %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventPriceCreated) {
		t.Errorf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}

	rr = get(s, "/ui/prices")
	if !strings.Contains(rr.Body.String(), "0,1234 €") {
		t.Fatalf("price list missing new price: %s", rr.Body.String())
	}

	prices, err := be.ListPrices(context.Background())
	if err != nil || len(prices) != 1 {
		t.Fatalf("prices = %v, %v", prices, err)
	}
	path := "/prices/" + strconv.FormatInt(prices[0].ID, 10)

	del := func(p string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		s.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, p, nil))
		return rr
	}

	rr = del(path)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete = %d", rr.Code)
	}
	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, EventPriceDeleted) || !strings.Contains(trigger, MsgPriceDeleted) {
		t.Errorf("delete HX-Trigger = %q", trigger)
	}
	if strings.Contains(rr.Body.String(), "0,1234 €") {
		t.Error("deleted price still listed")
	}

	rr = del(path)
	if strings.Contains(rr.Header().Get("HX-Trigger"), EventPriceDeleted) {
		t.Error("second delete must not report success")
	}
	if rr = del("/prices/abc"); rr.Code != http.StatusBadRequest {
		t.Errorf("delete abc = %d, want 400", rr.Code)
	}
}

func TestGroupPrices(t *testing.T) {
	today := core.NewDate(2025, 6, 1)
	end := core.NewDate(2025, 6, 1)
	prices := []core.UtilityPrice{
		{ID: 1, MeterType: core.Electricity, PricePerUnit: decimal.RequireFromString("0.30"), ValidFrom: core.NewDate(2024, 1, 1), ValidTo: &end},
		{ID: 2, MeterType: core.Electricity, PricePerUnit: decimal.RequireFromString("0.35"), ValidFrom: core.NewDate(2025, 7, 1)},
		{ID: 3, MeterType: core.Gas, PricePerUnit: decimal.RequireFromString("0.11"), ValidFrom: core.NewDate(2025, 1, 1)},
	}

	groups := groupPrices(prices, today)
	if len(groups) != 2 || groups[0].Type != core.Electricity || groups[1].Type != core.Gas {
		t.Fatalf("groups = %+v", groups)
	}
	elec := groups[0].Prices
	if elec[0].ID != 2 || elec[1].ID != 1 {
		t.Errorf("electricity order = %d, %d; want newest first", elec[0].ID, elec[1].ID)
	}
	if elec[0].Current || !elec[1].Current {
		t.Errorf("current flags = %v, %v; want false, true (end date inclusive)", elec[0].Current, elec[1].Current)
	}
	if want := "Möchten Sie den Preis 0,3000 € für Strom wirklich löschen?"; elec[1].Confirm != want {
		t.Errorf("confirm = %q, want %q", elec[1].Confirm, want)
	}
}

func uploadCSV(s *Server, name, content string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", name)
	_, _ = io.WriteString(fw, content)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)
	return rr
}

func TestImportFailureKeepsPartialRowsVisible(t *testing.T) {
	s, be := newTestServer(t)
	be.importErr = errors.New("database is locked")

	get(s, "/ui/charts?type=GAS")
	if got := be.listByType.Load(); got != 1 {
		t.Fatalf("backend calls = %d, want 1", got)
	}

	rr := uploadCSV(s, "zaehler.csv", "Datum,KW,Strom\n06.01.2025,2,1234,,,,,100,,,,,55\n")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("import = %d %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "3 Einträge wurden vor dem Fehler erstellt.") {
		t.Errorf("result body = %s", rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, EventImportCompleted) || !strings.Contains(trigger, `"type":"error"`) {
		t.Errorf("HX-Trigger = %s", trigger)
	}

	get(s, "/ui/charts?type=GAS")
	if got := be.listByType.Load(); got != 2 {
		t.Errorf("backend calls after failed import = %d, want 2", got)
	}
}

func TestImportUpload(t *testing.T) {
	s, be := newTestServer(t)

	rr := uploadCSV(s, "zaehler.csv", "Datum,KW,Strom\n06.01.2025,2,1234,,,,,100,,,,,55\n")
	if rr.Code != http.StatusOK {
		t.Fatalf("import = %d %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "Import abgeschlossen: 3 Einträge erstellt.") {
		t.Errorf("result body = %s", rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventImportCompleted) {
		t.Errorf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}
	all, _ := be.ListReadings(context.Background())
	if len(all) != 3 {
		t.Errorf("stored = %d, want 3", len(all))
	}

	req := httptest.NewRequest(http.MethodPost, "/import", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rr = httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnprocessableEntity || !strings.Contains(rr.Body.String(), MsgImportNoFile) {
		t.Errorf("missing file = %d %s", rr.Code, rr.Body.String())
	}
}
