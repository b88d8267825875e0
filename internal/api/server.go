package api

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"household/internal/core"
	applog "household/internal/log"
	"household/internal/metrics"
	"household/internal/middleware/ratelimit"
	"household/internal/middleware/security"
	"household/internal/middleware/trace"
)

type (
	// ReadingService is the reading side of the domain the API exposes.
	ReadingService interface {
		CreateReading(ctx context.Context, req core.CreateReadingRequest) (core.MeterReading, error)
		ListReadings(ctx context.Context) ([]core.MeterReading, error)
		ListReadingsByType(ctx context.Context, t core.MeterType) ([]core.MeterReading, error)
		LatestReading(ctx context.Context, t core.MeterType) (core.MeterReading, error)
		Consumption(ctx context.Context, t core.MeterType) (core.ConsumptionResponse, error)
	}

	// PriceService is the price side of the domain the API exposes.
	PriceService interface {
		CreatePrice(ctx context.Context, req core.CreatePriceRequest) (core.UtilityPrice, error)
		ListPrices(ctx context.Context) ([]core.UtilityPrice, error)
		ListPricesByType(ctx context.Context, t core.MeterType) ([]core.UtilityPrice, error)
		CurrentPrice(ctx context.Context, t core.MeterType, day core.Date) (core.UtilityPrice, error)
		DeletePrice(ctx context.Context, id int64) error
	}

	// Importer reads the legacy CSV layout.
	Importer interface {
		Import(ctx context.Context, r io.Reader) (int, error)
	}
)

// Options tunes the server. Zero values fall back to defaults.
type Options struct {
	Logger             *applog.Logger
	RateLimitPerMinute int
	MaxUploadBytes     int64
}

const defaultMaxUploadBytes = 10 << 20

// Server is the REST API for meter readings and utility prices.
type Server struct {
	http.Server
	readings ReadingService
	prices   PriceService
	importer Importer

	logger         *applog.Logger
	events         *applog.StructuredLogger
	detector       *security.Detector
	limiter        *ratelimit.Limiter
	maxUploadBytes int64
	shutdownOnce   sync.Once
}

// NewServer wires routes and middleware and returns a ready-to-run server.
func NewServer(addr string, readings ReadingService, prices PriceService, importer Importer, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentAPI)
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	s := &Server{
		readings:       readings,
		prices:         prices,
		importer:       importer,
		logger:         logger,
		events:         applog.NewStructuredLogger(logger),
		detector:       security.NewDetector(),
		limiter:        ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		maxUploadBytes: maxUpload,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	// Trace wraps the mux directly so it sees the matched pattern.
	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.writeRateLimited)(handler)
	handler = trace.NewMiddleware(logger, s.detector.ExtractClientIP).Middleware(handler)
	handler = applog.Middleware(logger)(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.APIHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	s.handle(mux, "GET /api/v1/meter-readings", s.handleListReadings)
	s.handle(mux, "POST /api/v1/meter-readings", s.handleCreateReading)
	s.handle(mux, "POST /api/v1/meter-readings/import", s.handleImportReadings)
	s.handle(mux, "GET /api/v1/meter-readings/{type}", s.handleReadingsByType)
	s.handle(mux, "GET /api/v1/meter-readings/{type}/latest", s.handleLatestReading)
	s.handle(mux, "GET /api/v1/meter-readings/{type}/consumption", s.handleConsumption)

	s.handle(mux, "GET /api/v1/utility-prices", s.handleListPrices)
	s.handle(mux, "POST /api/v1/utility-prices", s.handleCreatePrice)
	s.handle(mux, "GET /api/v1/utility-prices/{type}", s.handlePricesByType)
	// "meter-type/current" would match both {type}/current and meter-type/{type},
	// so the two-segment routes share one dispatcher.
	s.handle(mux, "GET /api/v1/utility-prices/{first}/{second}", s.handlePriceSubroute)
	s.handle(mux, "GET /api/v1/utility-prices/meter-type/{type}/current", s.handleCurrentPrice)
	s.handle(mux, "DELETE /api/v1/utility-prices/{id}", s.handleDeletePrice)

	s.handle(mux, "GET /api/v1/health", s.handleHealth)
	s.handle(mux, "GET /api/v1/health/status", s.handleStatus)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("/", s.handleNotFound)
}

// handle registers h with a request-scoped logger carrying the request ID.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, applog.RequestIDMiddleware(trace.RequestIDFromRequest)(h))
}

// Shutdown stops the limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) writeRateLimited(w http.ResponseWriter, r *http.Request) {
	writeProblem(w, http.StatusTooManyRequests, "Zu viele Anfragen. Bitte später erneut versuchen.")
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeProblem(w, http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path)
}
