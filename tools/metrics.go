package tools

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for tool execution.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	warnings *prometheus.CounterVec
}

// NewMetrics creates tool metrics and registers them with reg. A nil reg
// leaves the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semplan",
			Subsystem: "tools",
			Name:      "calls_total",
			Help:      "Tool calls by tool name and outcome.",
		}, []string{"tool", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "semplan",
			Subsystem: "tools",
			Name:      "call_duration_seconds",
			Help:      "Tool call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"tool"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semplan",
			Subsystem: "tools",
			Name:      "warnings_total",
			Help:      "Warnings returned alongside successful tool calls.",
		}, []string{"tool"}),
	}
	if reg != nil {
		reg.MustRegister(m.calls, m.duration, m.warnings)
	}
	return m
}

func (m *Metrics) observe(tool, status string, seconds float64, warnings int) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(tool, status).Inc()
	m.duration.WithLabelValues(tool).Observe(seconds)
	if warnings > 0 {
		m.warnings.WithLabelValues(tool).Add(float64(warnings))
	}
}
