package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "focusrank_dispatcher_"

const (
	MetricEventsEnqueued = namespace + "events_enqueued_total"
	MetricEventsPruned   = namespace + "events_pruned_total"
	MetricEventsDropped  = namespace + "events_dropped_total"
	MetricBatchesFlushed = namespace + "batches_flushed_total"
	MetricBatchSize      = namespace + "batch_size"
)

// Metrics are the counters the dispatcher maintains.
type Metrics struct {
	EventsEnqueued prometheus.Counter
	EventsPruned   prometheus.Counter
	EventsDropped  prometheus.Counter
	BatchesFlushed prometheus.Counter
	BatchSize      prometheus.Histogram
}

// NewMetrics creates the dispatcher metrics and registers them with reg.
// A nil registerer yields working but unregistered metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsEnqueued: f.NewCounter(prometheus.CounterOpts{
			Name: MetricEventsEnqueued,
			Help: "Total number of events accepted into the pending queue.",
		}),
		EventsPruned: f.NewCounter(prometheus.CounterOpts{
			Name: MetricEventsPruned,
			Help: "Total number of queued events superseded by a newer event for the same resource.",
		}),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: MetricEventsDropped,
			Help: "Total number of events dropped because the dispatcher was closed.",
		}),
		BatchesFlushed: f.NewCounter(prometheus.CounterOpts{
			Name: MetricBatchesFlushed,
			Help: "Total number of batches delivered to subscribers.",
		}),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricBatchSize,
			Help:    "Number of events per delivered batch.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
	}
}
