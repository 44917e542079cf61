package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BreakerEnabled indicates whether the circuit breaker allows pair opening.
	BreakerEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "funding_arb_circuit_breaker_enabled",
		Help: "Whether circuit breaker allows pair opening (1=enabled, 0=disabled)",
	})

	// BreakerVenueCollateral tracks the last checked free collateral per venue.
	BreakerVenueCollateral = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "funding_arb_circuit_breaker_collateral_usd",
		Help: "Last checked free collateral per venue in USD",
	}, []string{"venue"})

	// BreakerDisableThreshold tracks the current threshold for disabling opening.
	BreakerDisableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "funding_arb_circuit_breaker_disable_threshold_usd",
		Help: "Current collateral threshold for disabling pair opening",
	})

	// BreakerEnableThreshold tracks the current threshold for re-enabling opening.
	BreakerEnableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "funding_arb_circuit_breaker_enable_threshold_usd",
		Help: "Current collateral threshold for re-enabling pair opening (with hysteresis)",
	})

	// BreakerAvgTradeNotional tracks the rolling average trade notional.
	BreakerAvgTradeNotional = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "funding_arb_circuit_breaker_avg_trade_notional_usd",
		Help: "Rolling average trade notional used for threshold calculation",
	})

	// BreakerStateChanges tracks the number of times the breaker changed state.
	BreakerStateChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funding_arb_circuit_breaker_state_changes_total",
		Help: "Total number of times circuit breaker changed state",
	})

	// BreakerCheckDuration tracks the time taken to read venue collateral.
	BreakerCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "funding_arb_circuit_breaker_check_duration_seconds",
		Help:    "Time taken to read free collateral from all venues",
		Buckets: prometheus.DefBuckets,
	})
)
