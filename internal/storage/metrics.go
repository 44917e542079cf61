package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransitionsTotal counts appended trade-log rows by status.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funding_arb_storage_transitions_total",
		Help: "Trade log transitions appended by status",
	}, []string{"status"})

	// TransitionErrorsTotal counts failed trade-log writes.
	TransitionErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funding_arb_storage_transition_errors_total",
		Help: "Failed trade log writes",
	})
)
