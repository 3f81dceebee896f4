package wishlist

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/atelier-jewellery/storefront/internal/domain"
)

// Mutation outcomes recorded in metrics.
const (
	outcomeApplied   = "applied"
	outcomeConverged = "converged"
	outcomeFailed    = "failed"
	outcomeDropped   = "dropped"
)

// Metrics holds the wishlist store's Prometheus instruments.
type Metrics struct {
	mutations        *prometheus.CounterVec
	counterFailures  prometheus.Counter
	reconciliations  *prometheus.CounterVec
	loadFailures     prometheus.Counter
	inFlightRejected prometheus.Counter
}

// NewMetrics registers the store metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wishlist_mutations_total",
			Help: "Wishlist mutations by operation and outcome",
		}, []string{"op", "outcome"}),
		counterFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "wishlist_counter_update_failures_total",
			Help: "Like counter updates that failed and left the counter drifted",
		}),
		reconciliations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wishlist_counter_reconciliations_total",
			Help: "Like counter recomputations by result",
		}, []string{"result"}),
		loadFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "wishlist_load_failures_total",
			Help: "Initial wishlist loads that failed",
		}),
		inFlightRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "wishlist_inflight_rejections_total",
			Help: "Mutations dropped because another one on the same product was running",
		}),
	}
}

func (m *Metrics) mutation(op domain.Op, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(string(op), outcome).Inc()
	if outcome == outcomeDropped {
		m.inFlightRejected.Inc()
	}
}

func (m *Metrics) counterFailed() {
	if m != nil {
		m.counterFailures.Inc()
	}
}

func (m *Metrics) reconciled(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.reconciliations.WithLabelValues(result).Inc()
}

func (m *Metrics) loadFailed() {
	if m != nil {
		m.loadFailures.Inc()
	}
}
