package position

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OpenPairsGauge tracks the number of tracked matched pairs.
	OpenPairsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "funding_arb_position_open_pairs",
		Help: "Currently tracked matched pairs",
	})

	// TransitionsTotal counts position state transitions by status.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funding_arb_position_transitions_total",
		Help: "Position state transitions by status",
	}, []string{"status"})

	// ClosedPositionsTotal counts successfully closed legs by venue.
	ClosedPositionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funding_arb_position_closed_total",
		Help: "Closed position legs by venue",
	}, []string{"venue"})

	// FailedPositionsTotal counts legs that ended FAILED by venue.
	FailedPositionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funding_arb_position_failed_total",
		Help: "Failed position legs by venue",
	}, []string{"venue"})

	// EntryPremiumGauge exposes the last entry premium per venue and
	// symbol.
	EntryPremiumGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "funding_arb_position_entry_premium",
		Help: "Fill price deviation from index at entry",
	}, []string{"venue", "symbol"})

	// CollateralStepFailuresTotal counts provisioning step failures.
	CollateralStepFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funding_arb_position_collateral_step_failures_total",
		Help: "Collateral provisioning step failures by step",
	}, []string{"step"})
)
