package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerbank_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "pattern", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledgerbank_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "pattern"})
)

// Metrics records per-route counters and latencies. It relies on the
// route pattern matched by the mux so that path parameters do not blow
// up label cardinality.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		pattern := r.Pattern
		if pattern == "" {
			pattern = "unmatched"
		}
		httpReqTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).Inc()
		httpLatency.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}
