package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for registry operations.
type Metrics struct {
	Operations         *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	ProfilesRegistered prometheus.Counter
	ProfilesDeleted    *prometheus.CounterVec
}

// New registers registry metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "profilereg_operations_total",
			Help: "Registry operations by name and outcome code",
		}, []string{"operation", "outcome"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "profilereg_operation_duration_seconds",
			Help:    "Duration of registry operations including storage",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		ProfilesRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "profilereg_profiles_registered_total",
			Help: "Profiles created by registration",
		}),
		ProfilesDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "profilereg_profiles_deleted_total",
			Help: "Profiles soft-deleted, by reason (owner or ban)",
		}, []string{"reason"}),
	}
}

// ObserveOperation records one finished operation. outcome is "ok" or the
// error code.
func (m *Metrics) ObserveOperation(op, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementRegistered() {
	if m != nil {
		m.ProfilesRegistered.Inc()
	}
}

func (m *Metrics) IncrementDeleted(reason string) {
	if m != nil {
		m.ProfilesDeleted.WithLabelValues(reason).Inc()
	}
}
