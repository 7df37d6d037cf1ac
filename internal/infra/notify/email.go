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

// EmailNotifier delivers customer messages through the transactional email
// provider's HTTP API.
type EmailNotifier struct {
	endpoint   string
	apiKey     string
	from       string
	httpClient *http.Client
}

// NewEmailNotifier creates an email notifier.
func NewEmailNotifier(endpoint, apiKey, from string, timeout time.Duration) *EmailNotifier {
	return &EmailNotifier{
		endpoint: endpoint,
		apiKey:   apiKey,
		from:     from,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type emailPayload struct {
	From     string         `json:"from"`
	To       string         `json:"to"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
}

// Send submits one templated email. Non-2xx responses are errors.
func (n *EmailNotifier) Send(ctx context.Context, recipient, template string, data map[string]any) error {
	payload, err := json.Marshal(emailPayload{
		From:     n.from,
		To:       recipient,
		Template: template,
		Data:     data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint+"/v1/send", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.apiKey)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("email provider returned %d", resp.StatusCode)
	}
	return nil
}

// Close releases idle connections.
func (n *EmailNotifier) Close() error {
	n.httpClient.CloseIdleConnections()
	return nil
}
