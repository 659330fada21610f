package tracker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "focusrank_tracker_"

// Metrics counts what the tracker does with incoming notifications.
type Metrics struct {
	Rejected    prometheus.Counter
	Duplicates  *prometheus.CounterVec
	Synthesized *prometheus.CounterVec
	Emitted     prometheus.Counter
	Windows     prometheus.Gauge
}

// NewMetrics creates the tracker metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Rejected: f.NewCounter(prometheus.CounterOpts{
			Name: namespace + "events_rejected_total",
			Help: "Notifications dropped because of an empty uri or application or an unknown type.",
		}),
		Duplicates: f.NewCounterVec(prometheus.CounterOpts{
			Name: namespace + "events_duplicate_total",
			Help: "Events dropped because they repeated the previous one.",
		}, []string{"stage"}),
		Synthesized: f.NewCounterVec(prometheus.CounterOpts{
			Name: namespace + "events_synthesized_total",
			Help: "Events inferred to keep the stream consistent.",
		}, []string{"type"}),
		Emitted: f.NewCounter(prometheus.CounterOpts{
			Name: namespace + "events_emitted_total",
			Help: "Events forwarded to the dispatcher.",
		}),
		Windows: f.NewGauge(prometheus.GaugeOpts{
			Name: namespace + "windows",
			Help: "Windows currently tracked.",
		}),
	}
}
