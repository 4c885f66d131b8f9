package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tokenmint_build_info",
			Help: "Build information of the token mint service",
		},
		[]string{"version"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenmint_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tokenmint_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tokenmint_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Ledger RPC metrics
	LedgerCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenmint_ledger_calls_total",
			Help: "Total number of ledger RPC calls",
		},
		[]string{"method", "status"},
	)

	LedgerCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tokenmint_ledger_call_duration_seconds",
			Help:    "Duration of ledger RPC calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~41s
		},
		[]string{"method"},
	)

	PaymentVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenmint_payment_verifications_total",
			Help: "Total number of payment verifications by mode and outcome",
		},
		[]string{"mode", "reason"}, // mode: "reference"/"history"
	)

	MintsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenmint_mints_total",
			Help: "Total number of mint orchestrations by outcome",
		},
		[]string{"outcome", "step"},
	)

	IdempotencyRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tokenmint_idempotency_records",
			Help: "Number of mint records currently retained",
		},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// RecordLedgerCall records metrics for a ledger RPC call.
func RecordLedgerCall(method string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	LedgerCallsTotal.WithLabelValues(method, status).Inc()
	LedgerCallDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordVerification records the outcome of a payment verification.
func RecordVerification(mode, reason string) {
	PaymentVerificationsTotal.WithLabelValues(mode, reason).Inc()
}

// RecordMint records the outcome of a mint orchestration. step is empty on success.
func RecordMint(outcome, step string) {
	MintsTotal.WithLabelValues(outcome, step).Inc()
}
