package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts completed scan passes.
	ScansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funding_arb_scanner_scans_total",
		Help: "Completed scan passes",
	})

	// ScanDurationSeconds tracks scan pass latency.
	ScanDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "funding_arb_scanner_scan_duration_seconds",
		Help:    "Scan pass latency",
		Buckets: prometheus.DefBuckets,
	})

	// OpportunitiesFoundTotal counts emitted candidates by symbol.
	OpportunitiesFoundTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funding_arb_scanner_opportunities_total",
		Help: "Candidates emitted by symbol",
	}, []string{"symbol"})

	// SymbolsSkippedTotal counts symbols dropped from a pass because a
	// venue's funding rate was unavailable.
	SymbolsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funding_arb_scanner_symbols_skipped_total",
		Help: "Symbols skipped by venue whose rate was unavailable",
	}, []string{"venue"})
)
