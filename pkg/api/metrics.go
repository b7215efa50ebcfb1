package api

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the request pipeline.
type Metrics struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	retries   *prometheus.CounterVec
	refreshes *prometheus.CounterVec
}

// NewMetrics registers the pipeline collectors with reg. A nil reg creates
// unregistered collectors, which is useful in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowctl_api_requests_total",
				Help: "Total API requests by method, outcome code and HTTP status",
			},
			[]string{"method", "code", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowctl_api_request_duration_seconds",
				Help:    "Duration of logical API requests including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowctl_api_retries_total",
				Help: "Total retried API attempts by method",
			},
			[]string{"method"},
		),
		refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowctl_api_token_refreshes_total",
				Help: "Total access token refresh exchanges by result",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) recordRequest(method, code string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, code, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) recordRetry(method string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(method).Inc()
}

func (m *Metrics) recordRefresh(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.refreshes.WithLabelValues(result).Inc()
}
