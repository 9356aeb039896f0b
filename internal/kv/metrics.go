package kv

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks unit-of-work execution across hosts.
type Metrics struct {
	TxDuration *prometheus.HistogramVec
	TxRetries  *prometheus.CounterVec
	LockWait   prometheus.Histogram
}

// NewMetrics registers storage metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TxDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "profilereg_kv_tx_duration_seconds",
			Help:    "Duration of storage units of work by backend and outcome",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"backend", "outcome"}),
		TxRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "profilereg_kv_tx_retries_total",
			Help: "Units of work retried after a serialization conflict",
		}, []string{"backend"}),
		LockWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "profilereg_kv_lock_wait_seconds",
			Help:    "Time spent acquiring the Redis execution lock",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
	}
}

// ObserveTx records a finished unit of work. Safe on a nil receiver.
func (m *Metrics) ObserveTx(backend string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "commit"
	if err != nil {
		outcome = "abort"
	}
	m.TxDuration.WithLabelValues(backend, outcome).Observe(time.Since(start).Seconds())
}

// IncRetry counts a retried unit of work. Safe on a nil receiver.
func (m *Metrics) IncRetry(backend string) {
	if m == nil {
		return
	}
	m.TxRetries.WithLabelValues(backend).Inc()
}

// ObserveLockWait records lock acquisition latency. Safe on a nil receiver.
func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.LockWait.Observe(d.Seconds())
}
