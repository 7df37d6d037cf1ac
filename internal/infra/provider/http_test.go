package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/payguard/internal/core/domain"
)

func newTestProvider(url string) *HTTPProvider {
	p := NewHTTPProvider(url, "sk_test", 5*time.Second)
	p.baseBackoff = time.Millisecond
	return p
}

func TestCharge_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/charges", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var req ChargeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "pi_1", req.AttemptRef)

		_ = json.NewEncoder(w).Encode(domain.ChargeResult{
			ChargeID:  "ch_1",
			Status:    domain.ChargeStatusSucceeded,
			RiskLevel: domain.RiskLevelNormal,
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	defer p.Close()

	res, err := p.Charge(context.Background(), &ChargeRequest{AttemptRef: "pi_1", AmountCents: 4500, Currency: "usd"})
	require.NoError(t, err)
	assert.Equal(t, domain.ChargeStatusSucceeded, res.Status)
	assert.Equal(t, "ch_1", res.ChargeID)
}

func TestCharge_DeclineIsDataNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": domain.ChargeError{Code: "card_declined", Message: "Your card was declined"},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	defer p.Close()

	res, err := p.Charge(context.Background(), &ChargeRequest{AttemptRef: "pi_2"})
	require.NoError(t, err, "a decline must not surface as a Go error")
	assert.Equal(t, domain.ChargeStatusFailed, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, "card_declined", res.Error.Code)
}

func TestCharge_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(domain.ChargeResult{Status: domain.ChargeStatusSucceeded})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	defer p.Close()

	res, err := p.Charge(context.Background(), &ChargeRequest{AttemptRef: "pi_3"})
	require.NoError(t, err)
	assert.Equal(t, domain.ChargeStatusSucceeded, res.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCharge_GivesUpAfterMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	defer p.Close()

	_, err := p.Charge(context.Background(), &ChargeRequest{AttemptRef: "pi_4"})
	assert.Error(t, err)
}
