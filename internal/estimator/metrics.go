package estimator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProjectedPnlGauge exposes the last projected PnL per symbol.
	ProjectedPnlGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "funding_arb_estimator_projected_pnl_usd",
		Help: "Last projected total PnL by symbol",
	}, []string{"symbol"})

	// SkippedOpportunitiesTotal counts opportunities dropped from a
	// ranking pass because a leg could not be estimated.
	SkippedOpportunitiesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funding_arb_estimator_skipped_opportunities_total",
		Help: "Opportunities skipped during ranking",
	})

	// RankDurationSeconds tracks ranking pass latency.
	RankDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "funding_arb_estimator_rank_duration_seconds",
		Help:    "Ranking pass latency",
		Buckets: prometheus.DefBuckets,
	})
)
