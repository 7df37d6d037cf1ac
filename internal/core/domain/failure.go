package domain

import "time"

// FailureCategory classifies why a payment attempt did not succeed.
// The set is closed; a failure is categorized once and never recategorized.
type FailureCategory string

const (
	CategoryInsufficientFunds      FailureCategory = "insufficient_funds"
	CategoryCardDeclined           FailureCategory = "card_declined"
	CategoryExpiredCard            FailureCategory = "expired_card"
	CategoryIncorrectCVC           FailureCategory = "incorrect_cvc"
	CategoryProcessingError        FailureCategory = "processing_error"
	CategoryAuthenticationRequired FailureCategory = "authentication_required"
	CategoryFraudSuspected         FailureCategory = "fraud_suspected"
	CategoryNetworkError           FailureCategory = "network_error"
	CategoryUnknown                FailureCategory = "unknown"
)

// Categories lists every failure category. Tables keyed by category must
// cover all of them.
var Categories = []FailureCategory{
	CategoryInsufficientFunds,
	CategoryCardDeclined,
	CategoryExpiredCard,
	CategoryIncorrectCVC,
	CategoryProcessingError,
	CategoryAuthenticationRequired,
	CategoryFraudSuspected,
	CategoryNetworkError,
	CategoryUnknown,
}

// FailureStatus is the lifecycle state of a PaymentFailure.
type FailureStatus string

const (
	// FailureStatusPending means a retry is scheduled (NextRetryAt set).
	FailureStatusPending FailureStatus = "pending"
	// FailureStatusRetrying means a retry execution is in flight.
	FailureStatusRetrying FailureStatus = "retrying"
	// FailureStatusAwaitingApproval means an operator must approve before
	// another attempt is armed.
	FailureStatusAwaitingApproval FailureStatus = "awaiting_approval"
	// Terminal states. A due timer firing on a terminal record is a no-op.
	FailureStatusResolved  FailureStatus = "resolved"
	FailureStatusExhausted FailureStatus = "exhausted"
	FailureStatusCancelled FailureStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s FailureStatus) Terminal() bool {
	return s == FailureStatusResolved || s == FailureStatusExhausted || s == FailureStatusCancelled
}

// PaymentFailure records one failed payment attempt and its recovery state.
// Records are created once per failure, mutated by retry executions, and
// never deleted (kept for analytics).
type PaymentFailure struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	AttemptRef    string          `json:"attempt_ref"` // provider payment-attempt reference, dedup key
	CustomerEmail string          `json:"customer_email"`
	AmountCents   int64           `json:"amount_cents"`
	Currency      string          `json:"currency"`
	Reason        string          `json:"reason"` // raw provider failure text
	Category      FailureCategory `json:"category"`
	CanRetry      bool            `json:"can_retry"`
	RetryAttempts int             `json:"retry_attempts"`
	Status        FailureStatus   `json:"status"`
	Version       int             `json:"version"` // optimistic concurrency counter
	NextRetryAt   *time.Time      `json:"next_retry_at,omitempty"`
	LastRetryAt   *time.Time      `json:"last_retry_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
