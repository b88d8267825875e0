// Package metrics holds the Prometheus collectors shared by the binaries.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "household"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served.",
		},
		[]string{"route", "method", "status"},
	)
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	upstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_client_requests_total",
			Help:      "Total number of calls made by the web client to the REST API.",
		},
		[]string{"operation", "status"},
	)
	upstreamDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_client_request_duration_seconds",
			Help:      "REST API call latency in seconds as seen by the web client.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache name and result.",
		},
		[]string{"cache", "result"},
	)

	readingsExportedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_exported_total",
			Help:      "Readings exported to the spreadsheet by result.",
		},
		[]string{"result"},
	)

	rateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the per-IP rate limiter.",
		},
	)

	suspiciousRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suspicious_requests_total",
			Help:      "Requests flagged by the security detector by reason.",
		},
		[]string{"reason"},
	)

	messagesPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "amqp_messages_published_total",
			Help:      "Reading recorded messages published by result.",
		},
		[]string{"result"},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest records a served request. route should be the mux pattern,
// never the raw path, to keep label cardinality bounded.
func ObserveHTTPRequest(route, method string, status int, dur time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(route, method).Observe(dur.Seconds())
}

// ObserveUpstream records a REST API call. status is 0 for transport failures.
func ObserveUpstream(operation string, status int, dur time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	upstreamRequestsTotal.WithLabelValues(operation, label).Inc()
	upstreamDurationSeconds.WithLabelValues(operation).Observe(dur.Seconds())
}

func CacheHit(cache string)  { cacheLookupsTotal.WithLabelValues(cache, "hit").Inc() }
func CacheMiss(cache string) { cacheLookupsTotal.WithLabelValues(cache, "miss").Inc() }

func RateLimited() { rateLimitedTotal.Inc() }

func SuspiciousRequest(reason string) { suspiciousRequestsTotal.WithLabelValues(reason).Inc() }

func ObserveExport(err error) { readingsExportedTotal.WithLabelValues(result(err)).Inc() }

func ObservePublish(err error) { messagesPublishedTotal.WithLabelValues(result(err)).Inc() }

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
