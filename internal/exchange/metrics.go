package exchange

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDurationSeconds tracks venue call latency per operation.
	RequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "funding_arb_exchange_request_duration_seconds",
		Help:    "Venue request latency by venue and operation",
		Buckets: prometheus.DefBuckets,
	}, []string{"venue", "operation"})

	// RequestErrorsTotal counts failed venue calls per operation.
	RequestErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funding_arb_exchange_request_errors_total",
		Help: "Failed venue requests by venue and operation",
	}, []string{"venue", "operation"})

	// FundingRateGauge exposes the last observed funding rate per
	// venue and symbol.
	FundingRateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "funding_arb_exchange_funding_rate",
		Help: "Last observed funding rate by venue and symbol",
	}, []string{"venue", "symbol"})

	// FeedReconnectsTotal counts websocket feed reconnections.
	FeedReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funding_arb_exchange_feed_reconnects_total",
		Help: "Websocket market feed reconnections by venue",
	}, []string{"venue"})
)
