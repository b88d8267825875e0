// Package apiclient talks to the household REST API on behalf of the web client.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"household/internal/core"
	"household/internal/metrics"
)

const (
	readingsPath = "/api/v1/meter-readings"
	pricesPath   = "/api/v1/utility-prices"
)

// Client implements backend.Backend over HTTP. It never retries.
type Client struct {
	base *BaseClient
}

func New(baseURL string, timeout time.Duration) *Client {
	return NewWithDoer(baseURL, NewDefaultHTTPClient(timeout))
}

func NewWithDoer(baseURL string, doer HTTPDoer) *Client {
	return &Client{base: NewBaseClient(baseURL, doer)}
}

func (c *Client) ListReadings(ctx context.Context) ([]core.MeterReading, error) {
	var out []core.MeterReading
	if err := c.call(ctx, "list_readings", http.MethodGet, readingsPath, nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListReadingsByType(ctx context.Context, t core.MeterType) ([]core.MeterReading, error) {
	var out []core.MeterReading
	if err := c.call(ctx, "list_readings_by_type", http.MethodGet, readingsPath+"/"+t.String(), nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LatestReading returns nil when the API answers 404.
func (c *Client) LatestReading(ctx context.Context, t core.MeterType) (*core.MeterReading, error) {
	var out core.MeterReading
	err := c.call(ctx, "latest_reading", http.MethodGet, readingsPath+"/"+t.String()+"/latest", nil, "", &out)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Consumption returns nil when the API answers 404.
func (c *Client) Consumption(ctx context.Context, t core.MeterType) (*core.ConsumptionResponse, error) {
	var out core.ConsumptionResponse
	err := c.call(ctx, "consumption", http.MethodGet, readingsPath+"/"+t.String()+"/consumption", nil, "", &out)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// readingRequest is the wire form of a new reading. The API expects
// readingDate as a zone-less date-time at midnight.
type readingRequest struct {
	core.CreateReadingRequest
	ReadingDate string `json:"readingDate"`
}

func (c *Client) CreateReading(ctx context.Context, req core.CreateReadingRequest) (core.MeterReading, error) {
	body, err := json.Marshal(readingRequest{
		CreateReadingRequest: req,
		ReadingDate:          req.ReadingDate.Format(core.DateTimeLayout),
	})
	if err != nil {
		return core.MeterReading{}, fmt.Errorf("encode reading: %w", err)
	}
	var out core.MeterReading
	if err := c.call(ctx, "create_reading", http.MethodPost, readingsPath, bytes.NewReader(body), "", &out); err != nil {
		return core.MeterReading{}, err
	}
	return out, nil
}

// ImportCSV uploads r as the multipart field "file".
func (c *Client) ImportCSV(ctx context.Context, filename string, r io.Reader) (int, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return 0, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return 0, fmt.Errorf("copy csv: %w", err)
	}
	if err := mw.Close(); err != nil {
		return 0, fmt.Errorf("close multipart: %w", err)
	}

	var out core.ImportResult
	if err := c.call(ctx, "import_csv", http.MethodPost, readingsPath+"/import", &buf, mw.FormDataContentType(), &out); err != nil {
		return 0, err
	}
	return out.CreatedCount, nil
}

func (c *Client) ListPrices(ctx context.Context) ([]core.UtilityPrice, error) {
	var out []core.UtilityPrice
	if err := c.call(ctx, "list_prices", http.MethodGet, pricesPath, nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListPricesByType(ctx context.Context, t core.MeterType) ([]core.UtilityPrice, error) {
	var out []core.UtilityPrice
	if err := c.call(ctx, "list_prices_by_type", http.MethodGet, pricesPath+"/"+t.String(), nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CurrentPrice returns nil when the API answers 404.
func (c *Client) CurrentPrice(ctx context.Context, t core.MeterType) (*core.UtilityPrice, error) {
	var out core.UtilityPrice
	err := c.call(ctx, "current_price", http.MethodGet, pricesPath+"/"+t.String()+"/current", nil, "", &out)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePrice(ctx context.Context, req core.CreatePriceRequest) (core.UtilityPrice, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return core.UtilityPrice{}, fmt.Errorf("encode price: %w", err)
	}
	var out core.UtilityPrice
	if err := c.call(ctx, "create_price", http.MethodPost, pricesPath, bytes.NewReader(body), "", &out); err != nil {
		return core.UtilityPrice{}, err
	}
	return out, nil
}

func (c *Client) DeletePrice(ctx context.Context, id int64) error {
	return c.call(ctx, "delete_price", http.MethodDelete, pricesPath+"/"+strconv.FormatInt(id, 10), nil, "", nil)
}

// call performs one request and decodes a 2xx body into out when out is not nil.
func (c *Client) call(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	var headers map[string]string
	if contentType != "" {
		headers = map[string]string{"Content-Type": contentType}
	}

	start := time.Now()
	status, respBody, err := c.base.Do(ctx, method, path, body, headers)
	metrics.ObserveUpstream(op, status, time.Since(start))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%s: %w", op, newAPIError(status, respBody))
	}
	if out == nil || status == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
