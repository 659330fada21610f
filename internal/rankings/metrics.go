package rankings

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "focusrank_rankings_"

// Metrics counts ranking updates and population scans.
type Metrics struct {
	Updates    *prometheus.CounterVec
	Scans      prometheus.Counter
	ScanErrors prometheus.Counter
}

// NewMetrics creates the ranking metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Updates: f.NewCounterVec(prometheus.CounterOpts{
			Name: namespace + "updates_total",
			Help: "Score updates by outcome: inserted, below_threshold or invalid.",
		}, []string{"result"}),
		Scans: f.NewCounter(prometheus.CounterOpts{
			Name: namespace + "scans_total",
			Help: "Population scans run against the score store.",
		}),
		ScanErrors: f.NewCounter(prometheus.CounterOpts{
			Name: namespace + "scan_errors_total",
			Help: "Population scans that failed.",
		}),
	}
}
