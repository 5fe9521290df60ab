package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Core agrupa os contadores do núcleo de previsões.
// Um *Core nil é válido: todos os métodos viram no-op (útil em testes).
type Core struct {
	wagersPlaced   *prometheus.CounterVec
	wagersSettled  *prometheus.CounterVec
	settlements    *prometheus.CounterVec
	undos          prometheus.Counter
	quoteFallbacks prometheus.Counter
	quoteCache     *prometheus.CounterVec
	notifyFailures *prometheus.CounterVec
	stakeTotal     prometheus.Counter
	payoutTotal    prometheus.Counter
	settleDuration prometheus.Histogram
}

// NewCore cria e registra os coletores no registerer informado
// (prometheus.DefaultRegisterer no main, um registry novo nos testes).
func NewCore(reg prometheus.Registerer) *Core {
	c := &Core{
		wagersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predictions_wagers_placed_total",
			Help: "Wagers accepted by the ledger, by number of legs.",
		}, []string{"legs"}),
		wagersSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predictions_wagers_settled_total",
			Help: "Wager status transitions produced by settlement and undo.",
		}, []string{"status"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predictions_matches_settled_total",
			Help: "Matches settled, by outcome.",
		}, []string{"outcome"}),
		undos: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "predictions_settlement_undos_total",
			Help: "Settlements reverted.",
		}),
		quoteFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "predictions_quote_fallbacks_total",
			Help: "Quotes served from the fallback distribution.",
		}),
		quoteCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predictions_quote_cache_total",
			Help: "Quote cache lookups, by result.",
		}, []string{"result"}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predictions_notify_failures_total",
			Help: "Post-commit notifications that failed (recoverable inconsistency).",
		}, []string{"kind"}),
		stakeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "predictions_stake_amount_total",
			Help: "Sum of accepted stakes.",
		}),
		payoutTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "predictions_payout_amount_total",
			Help: "Sum of payouts credited (reversals not subtracted).",
		}),
		settleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "predictions_settle_duration_seconds",
			Help:    "Latency of the settlement transaction.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		c.wagersPlaced, c.wagersSettled, c.settlements, c.undos,
		c.quoteFallbacks, c.quoteCache, c.notifyFailures,
		c.stakeTotal, c.payoutTotal, c.settleDuration,
	)
	return c
}

func (c *Core) WagerPlaced(legs int, stake float64) {
	if c == nil {
		return
	}
	c.wagersPlaced.WithLabelValues(legsLabel(legs)).Inc()
	c.stakeTotal.Add(stake)
}

func (c *Core) WagerSettled(status string, payout float64) {
	if c == nil {
		return
	}
	c.wagersSettled.WithLabelValues(status).Inc()
	if payout > 0 {
		c.payoutTotal.Add(payout)
	}
}

func (c *Core) MatchSettled(outcome string, seconds float64) {
	if c == nil {
		return
	}
	c.settlements.WithLabelValues(outcome).Inc()
	c.settleDuration.Observe(seconds)
}

func (c *Core) SettlementUndone() {
	if c == nil {
		return
	}
	c.undos.Inc()
}

func (c *Core) QuoteFallback() {
	if c == nil {
		return
	}
	c.quoteFallbacks.Inc()
}

func (c *Core) QuoteCache(hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.quoteCache.WithLabelValues("hit").Inc()
		return
	}
	c.quoteCache.WithLabelValues("miss").Inc()
}

func (c *Core) NotifyFailed(kind string) {
	if c == nil {
		return
	}
	c.notifyFailures.WithLabelValues(kind).Inc()
}

func legsLabel(n int) string {
	switch {
	case n <= 1:
		return "single"
	case n <= 3:
		return "parlay_small"
	default:
		return "parlay_large"
	}
}
