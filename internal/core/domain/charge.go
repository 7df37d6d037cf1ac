package domain

// ChargeError is the raw error descriptor a payment provider attaches to a
// failed charge. All fields are optional; an empty descriptor is valid input
// to the classifier and resolves to CategoryUnknown.
type ChargeError struct {
	Code    string `json:"code,omitempty"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

// RiskLevel is the provider-supplied fraud likelihood signal for a charge.
type RiskLevel string

const (
	RiskLevelNormal   RiskLevel = "normal"
	RiskLevelElevated RiskLevel = "elevated"
	RiskLevelHighest  RiskLevel = "highest"
)

// ChargeStatus is the provider-reported outcome of a charge attempt.
type ChargeStatus string

const (
	ChargeStatusSucceeded ChargeStatus = "succeeded"
	ChargeStatusFailed    ChargeStatus = "failed"
)

// ChargeResult is the outcome of a charge attempt against the provider.
// A business decline is represented as data (Status + Error), never as a
// Go error; Go errors are reserved for transport/infrastructure failures.
type ChargeResult struct {
	ChargeID  string       `json:"charge_id"`
	Status    ChargeStatus `json:"status"`
	RiskLevel RiskLevel    `json:"risk_level,omitempty"`
	Error     *ChargeError `json:"error,omitempty"`
}

// FailureEvent is the inbound notification that a payment attempt failed,
// as delivered by the provider webhook.
type FailureEvent struct {
	OrderID       string       `json:"order_id"`
	AttemptRef    string       `json:"attempt_ref"`
	CustomerEmail string       `json:"customer_email"`
	AmountCents   int64        `json:"amount_cents"`
	Currency      string       `json:"currency"`
	Error         *ChargeError `json:"error,omitempty"`
	RiskLevel     RiskLevel    `json:"risk_level,omitempty"`
}
