package metrics

import "github.com/prometheus/client_golang/prometheus"

// Bracket conta os eventos processados pelo bracket-worker. Nil é no-op.
type Bracket struct {
	events *prometheus.CounterVec
}

func NewBracket(reg prometheus.Registerer) *Bracket {
	b := &Bracket{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bracket_events_total",
			Help: "match_settled events handled by the bracket worker, by type and result.",
		}, []string{"type", "result"}),
	}
	reg.MustRegister(b.events)
	return b
}

// Event registra o resultado: advanced, retracted, skipped, dlq, failed
func (b *Bracket) Event(typ, result string) {
	if b == nil {
		return
	}
	b.events.WithLabelValues(typ, result).Inc()
}
