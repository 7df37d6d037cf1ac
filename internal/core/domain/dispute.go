package domain

import "time"

// DisputeStatus tracks a chargeback through its external lifecycle.
// Resolution is driven by the provider/bank; this service never auto-resolves.
type DisputeStatus string

const (
	DisputeStatusOpen           DisputeStatus = "open"
	DisputeStatusEvidenceNeeded DisputeStatus = "evidence_needed"
	DisputeStatusSubmitted      DisputeStatus = "submitted"
	DisputeStatusWon            DisputeStatus = "won"
	DisputeStatusLost           DisputeStatus = "lost"
)

// DisputeEvidence is the free-form bundle assembled from order shipping and
// customer communication data for submission to the provider.
type DisputeEvidence struct {
	ShippingCarrier     string    `json:"shipping_carrier,omitempty"`
	TrackingNumber      string    `json:"tracking_number,omitempty"`
	ShippedAt           time.Time `json:"shipped_at,omitempty"`
	CustomerEmailThread string    `json:"customer_email_thread,omitempty"`
	OrderNotes          string    `json:"order_notes,omitempty"`
}

// Dispute records a chargeback against a completed payment.
// Amounts are in the smallest currency unit.
type Dispute struct {
	ID            string           `json:"id"`
	AttemptRef    string           `json:"attempt_ref"`
	OrderID       string           `json:"order_id"`
	AmountCents   int64            `json:"amount_cents"`
	Currency      string           `json:"currency"`
	Reason        string           `json:"reason"`
	Status        DisputeStatus    `json:"status"`
	EvidenceDueAt *time.Time       `json:"evidence_due_at,omitempty"`
	Evidence      *DisputeEvidence `json:"evidence,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// DisputeEvent is the inbound provider notification of a new chargeback.
type DisputeEvent struct {
	AttemptRef    string     `json:"attempt_ref"`
	OrderID       string     `json:"order_id"`
	AmountCents   int64      `json:"amount_cents"`
	Currency      string     `json:"currency"`
	Reason        string     `json:"reason"`
	EvidenceDueAt *time.Time `json:"evidence_due_at,omitempty"`
}
