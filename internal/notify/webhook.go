package notify

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// WebhookPublisher POSTs notifications as JSON to a configured URL.
type WebhookPublisher struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookPublisher creates a webhook publisher.
func NewWebhookPublisher(url string, logger *zap.Logger) *WebhookPublisher {
	return &WebhookPublisher{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

// Publish implements Publisher. Delivery failures are logged and
// counted, never propagated.
func (w *WebhookPublisher) Publish(ctx context.Context, n Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		w.logger.Warn("notification-marshal-failed", zap.Error(err))
		FailedTotal.WithLabelValues(n.Event).Inc()
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		w.logger.Warn("notification-request-failed", zap.Error(err))
		FailedTotal.WithLabelValues(n.Event).Inc()
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn("notification-delivery-failed",
			zap.String("event", n.Event),
			zap.Error(err))
		FailedTotal.WithLabelValues(n.Event).Inc()
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		w.logger.Warn("notification-rejected",
			zap.String("event", n.Event),
			zap.Int("status", resp.StatusCode))
		FailedTotal.WithLabelValues(n.Event).Inc()
		return
	}

	PublishedTotal.WithLabelValues(n.Event).Inc()
}
