package notify

import (
	"context"

	"go.uber.org/zap"
)

// ConsolePublisher logs notifications through the structured logger.
type ConsolePublisher struct {
	logger *zap.Logger
}

// NewConsolePublisher creates a console publisher.
func NewConsolePublisher(logger *zap.Logger) *ConsolePublisher {
	return &ConsolePublisher{logger: logger}
}

// Publish implements Publisher.
func (c *ConsolePublisher) Publish(ctx context.Context, n Notification) {
	c.logger.Info("notification",
		zap.String("event", n.Event),
		zap.String("symbol", n.Symbol),
		zap.String("message", n.Message),
		zap.Any("fields", n.Fields))

	PublishedTotal.WithLabelValues(n.Event).Inc()
}
