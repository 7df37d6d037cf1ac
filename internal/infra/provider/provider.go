package provider

import (
	"context"

	"github.com/harborline/payguard/internal/core/domain"
)

// ChargeRequest asks the provider to create a new charge attempt for a
// previously failed payment.
type ChargeRequest struct {
	AttemptRef  string `json:"attempt_ref"`
	OrderID     string `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// ChargeProvider is the payment provider API consumed by the retry executor.
// A declined charge is a successful call: the decline travels in
// ChargeResult.Error. A returned Go error means the provider could not be
// reached or answered garbage, and the attempt was not consumed.
type ChargeProvider interface {
	// Charge creates a new charge attempt.
	Charge(ctx context.Context, req *ChargeRequest) (*domain.ChargeResult, error)

	// Close releases underlying resources.
	Close() error
}
