package notify

import "context"

// Template names understood by the downstream delivery services.
const (
	TemplatePaymentFailed    = "payment_failed"
	TemplatePaymentRecovered = "payment_recovered"
	TemplateOperatorAlert    = "operator_alert"
	TemplateDisputeOpened    = "dispute_opened"
)

// Notifier dispatches a templated message to a recipient. Delivery is
// best-effort: callers must treat a returned error as non-fatal and never
// let it block state persistence.
type Notifier interface {
	// Send delivers one message.
	Send(ctx context.Context, recipient, template string, data map[string]any) error

	// Close releases underlying resources.
	Close() error
}
