package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"household/internal/consumption"
	"household/internal/core"
)

func TestParseChartParams(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		want  ChartParams
	}{
		{
			name:  "defaults",
			query: url.Values{},
			want:  ChartParams{Type: core.Electricity},
		},
		{
			name:  "single selection",
			query: url.Values{"type": {"gas"}, "year": {"2024"}, "month": {"3"}},
			want:  ChartParams{Type: core.Gas, Single: consumption.Selection{Year: 2024, Month: 3}},
		},
		{
			name:  "ALL and garbage fall back",
			query: url.Values{"type": {"OIL"}, "year": {"ALL"}, "month": {"13"}},
			want:  ChartParams{Type: core.Electricity},
		},
		{
			name:  "month without year is dropped",
			query: url.Values{"type": {"WATER"}, "month": {"5"}},
			want:  ChartParams{Type: core.Water},
		},
		{
			name: "compare mode",
			query: url.Values{
				"compare": {"true"},
				"yearA":   {"2023"}, "monthA": {"ALL"},
				"yearB": {"2024"}, "monthB": {"7"},
			},
			want: ChartParams{
				Type:     core.Electricity,
				Compare:  true,
				CompareA: consumption.Selection{Year: 2023},
				CompareB: consumption.Selection{Year: 2024, Month: 7},
			},
		},
		{
			name:  "compare pairs ignored when off",
			query: url.Values{"yearA": {"2023"}},
			want:  ChartParams{Type: core.Electricity},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseChartParams(tt.query); got != tt.want {
				t.Errorf("ParseChartParams() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"id": "123", "name": "test", "amount": 42.5}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}

	if id := parser.Get("id"); id != "123" {
		t.Errorf("Get('id') = %q, want '123'", id)
	}

	if name := parser.Get("name"); name != "test" {
		t.Errorf("Get('name') = %q, want 'test'", name)
	}

	if amount := parser.Get("amount"); amount != "42.5" {
		t.Errorf("Get('amount') = %q, want '42.5'", amount)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "id=456&name=form+test&value=100"
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}

	if id := parser.Get("id"); id != "456" {
		t.Errorf("Get('id') = %q, want '456'", id)
	}

	if name := parser.Get("name"); name != "form test" {
		t.Errorf("Get('name') = %q, want 'form test'", name)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(""))

	parser := NewRequestBodyParser(req)
	err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}
