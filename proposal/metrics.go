package proposal

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks per-platform fetch outcomes.
type Metrics struct {
	fetchTotal    *prometheus.CounterVec
	fetchFailures *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
}

// NewMetrics creates fetch metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "govlens",
			Name:      "platform_fetch_total",
			Help:      "Number of platform adapter fetches.",
		}, []string{"platform"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "govlens",
			Name:      "platform_fetch_failures_total",
			Help:      "Number of failed platform adapter fetches.",
		}, []string{"platform"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "govlens",
			Name:      "platform_fetch_duration_seconds",
			Help:      "Duration of platform adapter fetches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"platform"}),
	}

	reg.MustRegister(m.fetchTotal, m.fetchFailures, m.fetchDuration)
	return m
}

// observeFetch records the outcome of one adapter fetch.
func (m *Metrics) observeFetch(platform string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}

	m.fetchTotal.WithLabelValues(platform).Inc()
	m.fetchDuration.WithLabelValues(platform).Observe(elapsed.Seconds())
	if err != nil {
		m.fetchFailures.WithLabelValues(platform).Inc()
	}
}
