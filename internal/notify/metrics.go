package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PublishedTotal counts delivered notifications by event.
	PublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funding_arb_notify_published_total",
		Help: "Delivered notifications by event",
	}, []string{"event"})

	// FailedTotal counts dropped notifications by event.
	FailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funding_arb_notify_failed_total",
		Help: "Dropped notifications by event",
	}, []string{"event"})
)
