package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "signalforge",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of operational API endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signalforge",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by API endpoint and code",
		},
		[]string{"endpoint", "code"},
	)

	TriggersRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "signalforge",
			Subsystem: "api",
			Name:      "triggers_rate_limited_total",
			Help:      "Manual workflow triggers rejected by the rate limiter",
		},
	)
)

// Register adds the API collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, TriggersRejected)
	})
}

// ObserveSince records the latency of endpoint since start.
func ObserveSince(endpoint string, start time.Time) {
	APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
