package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
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
)

// Identity subsystem metrics.
var (
	LoginFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_auth_login_failures_total",
			Help: "Failed first-factor login attempts by reason.",
		},
		[]string{"reason"},
	)

	Lockouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fleet_auth_lockouts_total",
		Help: "Accounts locked after repeated failed attempts.",
	})

	OTPIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_auth_otp_issued_total",
			Help: "One-time codes issued by delivery channel.",
		},
		[]string{"channel"},
	)

	OTPVerified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_auth_otp_verified_total",
			Help: "One-time code verification attempts by outcome.",
		},
		[]string{"outcome"},
	)

	AuthorizationDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_auth_denials_total",
			Help: "Authorization denials by reason.",
		},
		[]string{"reason"},
	)
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		LoginFailures, Lockouts, OTPIssued, OTPVerified, AuthorizationDenials,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
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

// CanonicalPath collapses identifier segments so metric label cardinality
// stays bounded. Unknown routes pass through unchanged.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	// /v1/{officials,vehicles,bookings}/<id>[/action]
	if len(parts) >= 4 && parts[1] == "v1" {
		switch parts[2] {
		case "officials", "vehicles", "bookings":
			if len(parts) == 4 {
				return "/" + parts[1] + "/" + parts[2] + "/:id"
			}
			if len(parts) == 5 {
				return "/" + parts[1] + "/" + parts[2] + "/:id/" + parts[4]
			}
		}
	}
	return path
}

// statusWriter captures the response code for the wrappers above.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
