package storage

import (
	"context"
	"errors"
	"time"

	"github.com/harborline/payguard/internal/core/domain"
)

var (
	// ErrNotFound is returned when a record doesn't exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a create collides with an existing
	// record for the same payment attempt (webhook re-delivery).
	ErrDuplicate = errors.New("record already exists for attempt")

	// ErrStaleRecord is returned when a versioned update lost the race to a
	// concurrent writer. Callers must re-read rather than overwrite.
	ErrStaleRecord = errors.New("stale record version")
)

// FailureRepository handles payment failure persistence.
// Records are never deleted; terminal records are kept for analytics.
type FailureRepository interface {
	// Create persists a new failure record. Returns ErrDuplicate if a record
	// for the same attempt reference already exists.
	Create(ctx context.Context, f *domain.PaymentFailure) error

	// GetByID retrieves a failure record.
	GetByID(ctx context.Context, id string) (*domain.PaymentFailure, error)

	// GetByAttemptRef retrieves a failure record by provider attempt reference.
	GetByAttemptRef(ctx context.Context, attemptRef string) (*domain.PaymentFailure, error)

	// GetNextDue returns the oldest pending record whose next retry is due
	// at or before now, or nil when none is due.
	GetNextDue(ctx context.Context, now time.Time) (*domain.PaymentFailure, error)

	// UpdateRetryState applies a retry transition (status, attempts,
	// schedule) with an optimistic version check. Returns ErrStaleRecord if
	// the stored version no longer matches f.Version. On success f.Version
	// is incremented.
	UpdateRetryState(ctx context.Context, f *domain.PaymentFailure) error

	// CountByStatus returns record counts grouped by status.
	CountByStatus(ctx context.Context) (map[domain.FailureStatus]int, error)

	// CountByCategorySince counts records of a category created after the
	// cutoff. Used for frequency-threshold alerting.
	CountByCategorySince(ctx context.Context, category domain.FailureCategory, since time.Time) (int, error)
}

// DisputeRepository handles chargeback persistence.
type DisputeRepository interface {
	// Create persists a new dispute. Returns ErrDuplicate on re-delivery.
	Create(ctx context.Context, d *domain.Dispute) error

	// GetByID retrieves a dispute.
	GetByID(ctx context.Context, id string) (*domain.Dispute, error)

	// AttachEvidence stores the evidence bundle and moves the dispute to
	// submitted-ready state.
	AttachEvidence(ctx context.Context, id string, ev *domain.DisputeEvidence) error

	// UpdateStatus records an externally driven status change.
	UpdateStatus(ctx context.Context, id string, status domain.DisputeStatus) error

	// ListOpen returns disputes not yet won or lost.
	ListOpen(ctx context.Context) ([]*domain.Dispute, error)
}

// NotificationRecord is one entry in the notification audit log.
type NotificationRecord struct {
	ID        string
	Recipient string
	Template  string
	Delivered bool
	Error     string
	CreatedAt time.Time
}

// NotificationLogRepository is the append-only audit trail of notification
// attempts. Unlike failures and disputes it is pruned on a retention policy.
type NotificationLogRepository interface {
	Append(ctx context.Context, rec *NotificationRecord) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
