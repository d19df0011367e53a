// Package metrics holds the Prometheus collectors of the bot and the small
// HTTP server that exposes them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cedulabot"

// Collectors groups every metric the bot records.
type Collectors struct {
	LookupsTotal       *prometheus.CounterVec
	LookupDuration     prometheus.Histogram
	DeliveriesTotal    *prometheus.CounterVec
	ConversationsTotal *prometheus.CounterVec
	ConflictsTotal     prometheus.Counter
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Collectors {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Collectors{
		LookupsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Lookup API calls by outcome (ok or error kind)",
		}, []string{"outcome"}),
		LookupDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_duration_seconds",
			Help:      "Lookup API call latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}),
		DeliveriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Delivered lookup results by branch",
		}, []string{"kind"}),
		ConversationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_total",
			Help:      "Conversation transitions by outcome",
		}, []string{"result"}),
		ConflictsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_conflicts_total",
			Help:      "getUpdates conflicts with another running instance",
		}),
	}
}

// ObserveLookup records one lookup call.
func (c *Collectors) ObserveLookup(outcome string, took time.Duration) {
	if c == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	c.LookupsTotal.WithLabelValues(outcome).Inc()
	c.LookupDuration.Observe(took.Seconds())
}

// ObserveConversation records a conversation outcome and, when set, the
// delivery branch it used.
func (c *Collectors) ObserveConversation(result, delivery string) {
	if c == nil {
		return
	}
	c.ConversationsTotal.WithLabelValues(result).Inc()
	if delivery != "" {
		c.DeliveriesTotal.WithLabelValues(delivery).Inc()
	}
}

// ObserveConflict counts a transport conflict.
func (c *Collectors) ObserveConflict() {
	if c == nil {
		return
	}
	c.ConflictsTotal.Inc()
}
