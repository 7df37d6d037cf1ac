package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookNotifier delivers operator alerts to a webhook endpoint
// (chat channel integration, incident tooling).
type WebhookNotifier struct {
	endpoint   string
	httpClient *http.Client
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(endpoint string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type webhookPayload struct {
	Channel  string         `json:"channel"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
}

// Send posts the message to the webhook. Non-2xx responses are errors.
func (n *WebhookNotifier) Send(ctx context.Context, recipient, template string, data map[string]any) error {
	payload, err := json.Marshal(webhookPayload{
		Channel:  recipient,
		Template: template,
		Data:     data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

// Close releases idle connections.
func (n *WebhookNotifier) Close() error {
	n.httpClient.CloseIdleConnections()
	return nil
}
