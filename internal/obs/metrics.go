package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	authFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_failures_total",
			Help: "Token verification failures by reason code.",
		},
		[]string{"reason"},
	)

	authzDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_denials_total",
			Help: "Authorization denials by reason code.",
		},
		[]string{"reason"},
	)

	rateLimitDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_denials_total",
			Help: "Requests rejected by the tier rate limiter, by window.",
		},
		[]string{"window"},
	)

	usageRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_records_total",
			Help: "Billable usage records accepted by the meter, by category.",
		},
		[]string{"category"},
	)
)

// Init registers all service metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		authFailuresTotal,
		authzDenialsTotal,
		rateLimitDenialsTotal,
		usageRecordedTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// AuthFailure counts a token verification failure.
func AuthFailure(reason string) {
	authFailuresTotal.WithLabelValues(reason).Inc()
}

// AuthzDenial counts an authorization denial.
func AuthzDenial(reason string) {
	authzDenialsTotal.WithLabelValues(reason).Inc()
}

// RateLimitDenial counts a tier rate-limit rejection for the given window.
func RateLimitDenial(window string) {
	rateLimitDenialsTotal.WithLabelValues(window).Inc()
}

// UsageRecorded counts an accepted usage record.
func UsageRecorded(category string) {
	usageRecordedTotal.WithLabelValues(category).Inc()
}

// Instrument wraps an http.Handler with request counters and latency
// histograms.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses identifier segments so metric labels stay bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if rest, ok := strings.CutPrefix(path, "/v1/invoices/"); ok && rest != "" {
		if strings.HasSuffix(rest, "/finalize") && strings.Count(rest, "/") == 1 {
			return "/v1/invoices/:id/finalize"
		}
		if !strings.Contains(rest, "/") {
			return "/v1/invoices/:id"
		}
	}
	if rest, ok := strings.CutPrefix(path, "/v1/usage/"); ok && rest != "" && !strings.Contains(rest, "/") {
		return "/v1/usage/:id"
	}
	return path
}

// statusWriter records the response code for metric labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
