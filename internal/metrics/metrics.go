package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dreschagin/corsfileserver/internal/httpx"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles prometheus collectors used by the file server.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
	ResponseBytes      prometheus.Counter
	RateLimitDropped   prometheus.Counter
}

func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fileserver_requests_total",
			Help: "Total number of file server HTTP requests.",
		}, []string{"method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fileserver_request_duration_seconds",
			Help:    "File server request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),
		ResponseBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fileserver_response_bytes_total",
			Help: "Total number of response body bytes written.",
		}),
		RateLimitDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fileserver_ratelimit_dropped_total",
			Help: "Total number of requests dropped by rate limiter.",
		}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDurationSec,
		m.ResponseBytes,
		m.RateLimitDropped,
	)

	return m
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		rec := httpx.NewStatusRecorder(w)

		next.ServeHTTP(rec, r)

		method := normalizeMethod(r.Method)
		status := strconv.Itoa(rec.Status())
		m.RequestsTotal.WithLabelValues(method, status).Inc()
		m.RequestDurationSec.WithLabelValues(method, status).Observe(time.Since(startedAt).Seconds())
		m.ResponseBytes.Add(float64(rec.BytesWritten()))
	})
}

// normalizeMethod keeps the method label bounded; clients may send any token.
func normalizeMethod(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPost,
		http.MethodPut, http.MethodPatch, http.MethodDelete:
		return method
	default:
		return "other"
	}
}
