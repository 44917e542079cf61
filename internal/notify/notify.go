// Package notify publishes trade lifecycle events to operators. Event
// delivery is fire-and-forget: a failed notification is logged and
// counted but never fails the operation that produced it.
package notify

import (
	"context"
	"time"
)

// Event names published over the lifetime of a trade.
const (
	EventOpportunityFound = "opportunity_found"
	EventPositionOpened   = "position_opened"
	EventPositionClosed   = "position_closed"
	EventTradeLogged      = "trade_logged"
)

// Notification is one operator-facing event.
type Notification struct {
	Event   string                 `json:"event"`
	Symbol  string                 `json:"symbol,omitempty"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
	At      time.Time              `json:"at"`
}

// Publisher delivers notifications.
type Publisher interface {
	// Publish delivers one notification. Implementations must not
	// block beyond ctx and must swallow delivery failures.
	Publish(ctx context.Context, n Notification)
}
