package http

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"household/internal/backend"
	"household/internal/cache"
	"household/internal/core"
	"household/internal/dashboard"
	applog "household/internal/log"
	"household/internal/metrics"
	"household/internal/middleware/ratelimit"
	"household/internal/middleware/security"
	"household/internal/middleware/trace"
	appweb "household/web"
)

const (
	readingsCacheName    = "readings"
	readingsCacheSize    = 16
	defaultCacheTTL      = 5 * time.Minute
	cacheCleanupInterval = 10 * time.Minute
	backendTimeout       = 7 * time.Second
	staticMaxAge         = 3600
	maxUploadBytes       = 10 << 20
)

// Options tunes the web server. Zero values fall back to defaults.
type Options struct {
	Logger             *applog.Logger
	GasFactor          decimal.Decimal
	RateLimitPerMinute int
	CacheTTL           time.Duration
}

// Server renders the household UI on top of a backend.
type Server struct {
	http.Server
	templates *template.Template
	backend   backend.Backend
	dashboard *dashboard.Service
	logger    *applog.Logger

	// Per-type reading lists for the charts page and the dashboard trend.
	readingsCache *cache.LRUCache[[]core.MeterReading]
	cacheManager  *cache.Manager

	detector     *security.Detector
	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, be backend.Backend, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		templates:     t,
		backend:       be,
		logger:        logger.WithComponent(applog.ComponentHTTP),
		readingsCache: cache.NewLRUCache[[]core.MeterReading](readingsCacheName, readingsCacheSize, ttl),
		cacheManager:  cache.NewManager(),
		detector:      security.NewDetector(),
		limiter:       ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
	}
	s.dashboard = dashboard.New(cachedSource{Backend: be, server: s}, opts.GasFactor)
	s.cacheManager.Register(s.readingsCache)
	s.cacheManager.StartCleanup(cacheCleanupInterval)

	mux := http.NewServeMux()
	if err := s.routes(mux); err != nil {
		s.cacheManager.Stop()
		s.limiter.Stop()
		return nil, err
	}

	// Trace wraps the mux directly so it sees the matched pattern.
	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.writeRateLimited)(handler)
	handler = trace.NewMiddleware(logger, s.detector.ExtractClientIP).Middleware(handler)
	handler = applog.Middleware(s.logger)(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) error {
	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("mount static assets: %w", err)
	}
	static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(static))

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.Handle("GET /metrics", metrics.Handler())

	s.handle(mux, "GET /{$}", s.handleDashboard)
	s.handle(mux, "GET /ui/dashboard", s.handleDashboardSummary)

	s.handle(mux, "GET /readings", s.handleReadingsPage)
	s.handle(mux, "POST /readings", s.handleCreateReading)
	s.handle(mux, "GET /ui/readings", s.handleRecentReadings)

	s.handle(mux, "GET /prices", s.handlePricesPage)
	s.handle(mux, "POST /prices", s.handleCreatePrice)
	s.handle(mux, "GET /ui/prices", s.handlePriceList)
	s.handle(mux, "DELETE /prices/{id}", s.handleDeletePrice)

	s.handle(mux, "GET /charts", s.handleChartsPage)
	s.handle(mux, "GET /ui/charts", s.handleChartsPanel)

	s.handle(mux, "GET /import", s.handleImportPage)
	s.handle(mux, "POST /import", s.handleImport)
	return nil
}

// handle registers h with a request-scoped logger carrying the request ID.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, applog.RequestIDMiddleware(trace.RequestIDFromRequest)(h))
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) writeRateLimited(w http.ResponseWriter, r *http.Request) {
	const msg = "Zu viele Anfragen. Bitte später erneut versuchen."
	ErrorResponse(http.StatusTooManyRequests, msg).
		TriggerErrorNotification(msg).
		Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// render executes a named template into the response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	s.renderWithTriggers(w, r, status, name, data, NewHTMXResponse())
}

// renderWithTriggers executes a named template and sends it through b, so the
// HX-Trigger header travels with the fragment.
func (s *Server) renderWithTriggers(w http.ResponseWriter, r *http.Request, status int, name string, data any, b *HTMXResponseBuilder) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldOperation, applog.OpRender,
			applog.FieldError, err.Error(),
			"template", name)
		InternalServerError(core.MsgServerError).Write(w)
		return
	}
	b.Status(status).BodyHTML(buf.String()).Write(w)
}

// readingsFor returns the readings of t, served from the cache when possible.
// The returned slice is a copy.
func (s *Server) readingsFor(ctx context.Context, t core.MeterType) ([]core.MeterReading, error) {
	key := string(t)
	if items, ok := s.readingsCache.Get(key); ok {
		return slices.Clone(items), nil
	}

	cctx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()
	items, err := s.backend.ListReadingsByType(cctx, t)
	if err != nil {
		return nil, fmt.Errorf("list readings (type=%s): %w", t, err)
	}
	s.readingsCache.Set(key, slices.Clone(items))
	return items, nil
}

func (s *Server) invalidateReadings(t core.MeterType) {
	s.readingsCache.Delete(string(t))
}

func (s *Server) invalidateAllReadings() {
	s.readingsCache.Purge()
}

// cachedSource routes the dashboard's reading lists through the server cache.
type cachedSource struct {
	backend.Backend
	server *Server
}

func (c cachedSource) ListReadingsByType(ctx context.Context, t core.MeterType) ([]core.MeterReading, error) {
	return c.server.readingsFor(ctx, t)
}
