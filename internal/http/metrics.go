package http

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records per-endpoint request counts and latencies.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swapline_http_requests_total",
				Help: "Venue HTTP requests by endpoint and response status (0 for transport failures).",
			},
			[]string{"exchange", "method", "endpoint", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "swapline_http_request_duration_seconds",
				Help:    "Venue HTTP request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"exchange", "method", "endpoint"},
		),
	}

	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(exchange, method, endpoint string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(exchange, method, endpoint, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(exchange, method, endpoint).Observe(elapsed.Seconds())
}
