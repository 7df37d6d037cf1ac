package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifier_Send(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, 5*time.Second)
	defer n.Close()

	err := n.Send(context.Background(), "#payments-ops", TemplateOperatorAlert, map[string]any{"alert": "fraud_suspected"})
	require.NoError(t, err)
	assert.Equal(t, "#payments-ops", got.Channel)
	assert.Equal(t, TemplateOperatorAlert, got.Template)
	assert.Equal(t, "fraud_suspected", got.Data["alert"])
}

func TestWebhookNotifier_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, 5*time.Second)
	defer n.Close()

	err := n.Send(context.Background(), "#payments-ops", TemplateOperatorAlert, nil)
	assert.Error(t, err)
}

func TestEmailNotifier_Send(t *testing.T) {
	var got emailPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewEmailNotifier(srv.URL, "key-123", "payments@example.com", 5*time.Second)
	defer n.Close()

	err := n.Send(context.Background(), "c@example.com", TemplatePaymentFailed, map[string]any{"order_id": "ord-1"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer key-123", auth)
	assert.Equal(t, "c@example.com", got.To)
	assert.Equal(t, "payments@example.com", got.From)
}
