package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlcanon_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "urlcanon_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
	NormalizeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlcanon_normalize_total",
			Help: "Normalization attempts by result",
		},
		[]string{"result"},
	)
	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "urlcanon_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter",
		},
	)
)

var registerOnce sync.Once

func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			RequestDuration,
			NormalizeTotal,
			RateLimitedTotal,
		)
	})
}
