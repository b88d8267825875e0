// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// It reduces code duplication by providing reusable functions for common
// form parsing, chart filter extraction, and input sanitization patterns.

package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"household/internal/consumption"
	"household/internal/core"
)

// ChartParams holds the charts page selection parsed from the query string.
type ChartParams struct {
	Type     core.MeterType
	Single   consumption.Selection
	Compare  bool
	CompareA consumption.Selection
	CompareB consumption.Selection
}

// ParseChartParams reads type, year, month, compare and the yearA/monthA and
// yearB/monthB pairs. Missing or invalid values fall back to "all" and electricity.
func ParseChartParams(query url.Values) ChartParams {
	params := ChartParams{
		Type:    ParseMeterTypeParam(query.Get("type"), core.Electricity),
		Single:  ParseSelection(query, ""),
		Compare: parseBool(query.Get("compare")),
	}
	if params.Compare {
		params.CompareA = ParseSelection(query, "A")
		params.CompareB = ParseSelection(query, "B")
	}
	return params
}

// ParseSelection extracts year<suffix> and month<suffix>. "ALL", empty or
// invalid values select everything; a month without a year is dropped.
func ParseSelection(query url.Values, suffix string) consumption.Selection {
	sel := consumption.Selection{
		Year:  parseChoice(query.Get("year"+suffix), 1900, 9999),
		Month: parseChoice(query.Get("month"+suffix), 1, 12),
	}
	if sel.Year == consumption.All {
		sel.Month = consumption.All
	}
	return sel
}

// ParseMeterTypeParam parses a meter type, returning fallback when s is empty or unknown.
func ParseMeterTypeParam(s string, fallback core.MeterType) core.MeterType {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	t, err := core.ParseMeterType(s)
	if err != nil {
		return fallback
	}
	return t
}

func parseChoice(v string, lo, hi int) int {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "ALL") {
		return consumption.All
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return consumption.All
	}
	return n
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(r.Body)
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' || p.body[0] == '[' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	// Fall back to form parsing
	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// GetRaw returns the raw body bytes.
func (p *RequestBodyParser) GetRaw() []byte {
	return p.body
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
