package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/harborline/payguard/internal/core/domain"
	"github.com/harborline/payguard/internal/monitoring/metrics"
)

// HTTPProvider implements ChargeProvider over the provider's JSON HTTP API.
type HTTPProvider struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client

	maxAttempts uint64
	baseBackoff time.Duration
}

// NewHTTPProvider creates a new HTTP-based charge provider.
func NewHTTPProvider(endpoint, apiKey string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		maxAttempts: 3,
		baseBackoff: 500 * time.Millisecond,
	}
}

// Charge posts a charge-attempt creation. Transport failures and 5xx
// responses are retried with exponential backoff; they never consume the
// business retry budget. Business declines come back inside the result.
func (p *HTTPProvider) Charge(ctx context.Context, req *ChargeRequest) (*domain.ChargeResult, error) {
	start := time.Now()

	var result *domain.ChargeResult
	backoff := retry.WithMaxRetries(p.maxAttempts, retry.NewExponential(p.baseBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := p.post(ctx, "/v1/charges", req)
		if err != nil {
			return retry.RetryableError(err)
		}
		result = res
		return nil
	})

	metrics.ProviderLatency.WithLabelValues("charge").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("charge").Inc()
		return nil, fmt.Errorf("provider charge call failed: %w", err)
	}
	return result, nil
}

func (p *HTTPProvider) post(ctx context.Context, path string, body any) (*domain.ChargeResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(data))
	}
	if resp.StatusCode >= 400 {
		// Client errors are not retryable at the transport layer; surface
		// the provider's error descriptor as a failed charge.
		var decline struct {
			Error *domain.ChargeError `json:"error"`
		}
		if err := json.Unmarshal(data, &decline); err != nil || decline.Error == nil {
			return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(data))
		}
		return &domain.ChargeResult{
			Status: domain.ChargeStatusFailed,
			Error:  decline.Error,
		}, nil
	}

	var result domain.ChargeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode charge result: %w", err)
	}
	return &result, nil
}

// Close releases idle connections.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
