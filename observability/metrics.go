package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hqlrpc",
			Subsystem: "client",
			Name:      "calls_total",
			Help:      "Completed RPC calls by method and outcome.",
		},
		[]string{"method", "outcome"},
	)
	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hqlrpc",
			Subsystem: "client",
			Name:      "call_duration_seconds",
			Help:      "RPC call duration in seconds, send to resolved reply.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	dialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hqlrpc",
			Subsystem: "transport",
			Name:      "dials_total",
			Help:      "Connection attempts by result.",
		},
		[]string{"success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(callsTotal, callDuration, dialsTotal)
	})
}

// RecordCall counts one call. outcome is "ok" or the name of the error kind.
func RecordCall(method, outcome string, duration time.Duration) {
	RegisterMetrics()
	callsTotal.WithLabelValues(method, outcome).Inc()
	callDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func RecordDial(success bool) {
	RegisterMetrics()
	label := "false"
	if success {
		label = "true"
	}
	dialsTotal.WithLabelValues(label).Inc()
}
