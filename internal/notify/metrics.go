package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks notification delivery.
type Metrics struct {
	Delivered     *prometheus.CounterVec
	Failed        *prometheus.CounterVec
	Dropped       prometheus.Counter
	BreakerOpened prometheus.Counter
	QueueDepth    prometheus.Gauge
}

// NewMetrics registers notification metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Delivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "profilereg_notify_delivered_total",
			Help: "Events delivered to a sink, by topic",
		}, []string{"topic"}),
		Failed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "profilereg_notify_failed_total",
			Help: "Events a sink rejected, by topic",
		}, []string{"topic"}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "profilereg_notify_dropped_total",
			Help: "Events dropped because the queue was full or the sink circuit was open",
		}),
		BreakerOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "profilereg_notify_breaker_opened_total",
			Help: "Times the delivery circuit opened",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "profilereg_notify_queue_depth",
			Help: "Events waiting for asynchronous delivery",
		}),
	}
}

func (m *Metrics) delivered(t Topic) {
	if m != nil {
		m.Delivered.WithLabelValues(string(t)).Inc()
	}
}

func (m *Metrics) failed(t Topic) {
	if m != nil {
		m.Failed.WithLabelValues(string(t)).Inc()
	}
}

func (m *Metrics) dropped(n int) {
	if m != nil && n > 0 {
		m.Dropped.Add(float64(n))
	}
}

func (m *Metrics) breakerOpened() {
	if m != nil {
		m.BreakerOpened.Inc()
	}
}

func (m *Metrics) depth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}
