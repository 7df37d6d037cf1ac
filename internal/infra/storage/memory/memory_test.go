package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/payguard/internal/core/domain"
	"github.com/harborline/payguard/internal/infra/storage"
)

func pendingFailure(id, ref string, due time.Time) *domain.PaymentFailure {
	return &domain.PaymentFailure{
		ID:          id,
		AttemptRef:  ref,
		Category:    domain.CategoryNetworkError,
		Status:      domain.FailureStatusPending,
		NextRetryAt: &due,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestFailureRepo_DuplicateAttemptRef(t *testing.T) {
	repo := NewFailureRepo(NewStore())
	ctx := context.Background()

	due := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, pendingFailure("f1", "pi_1", due)))
	err := repo.Create(ctx, pendingFailure("f2", "pi_1", due))
	assert.ErrorIs(t, err, storage.ErrDuplicate)
}

func TestFailureRepo_GetNextDue_OldestFirst(t *testing.T) {
	repo := NewFailureRepo(NewStore())
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, pendingFailure("f1", "pi_1", now.Add(-time.Minute))))
	require.NoError(t, repo.Create(ctx, pendingFailure("f2", "pi_2", now.Add(-time.Hour))))
	require.NoError(t, repo.Create(ctx, pendingFailure("f3", "pi_3", now.Add(time.Hour))))

	next, err := repo.GetNextDue(ctx, now)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "f2", next.ID, "oldest due record wins")
}

func TestFailureRepo_OptimisticVersioning(t *testing.T) {
	repo := NewFailureRepo(NewStore())
	ctx := context.Background()

	f := pendingFailure("f1", "pi_1", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, f))

	first, err := repo.GetByID(ctx, "f1")
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, "f1")
	require.NoError(t, err)

	first.Status = domain.FailureStatusResolved
	require.NoError(t, repo.UpdateRetryState(ctx, first))
	assert.Equal(t, 1, first.Version, "winner's version advances")

	// The loser still holds version 0 and must be rejected, not merged.
	second.RetryAttempts = 99
	err = repo.UpdateRetryState(ctx, second)
	assert.ErrorIs(t, err, storage.ErrStaleRecord)

	stored, err := repo.GetByID(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.RetryAttempts, "stale write must not land")
	assert.Equal(t, domain.FailureStatusResolved, stored.Status)
}

func TestDisputeRepo_EvidenceRoundTrip(t *testing.T) {
	repo := NewDisputeRepo(NewStore())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Dispute{
		ID:         "d1",
		AttemptRef: "pi_1",
		Status:     domain.DisputeStatusOpen,
	}))

	err := repo.AttachEvidence(ctx, "d1", &domain.DisputeEvidence{
		ShippingCarrier: "UPS",
		TrackingNumber:  "1Z999",
	})
	require.NoError(t, err)

	d, err := repo.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeStatusSubmitted, d.Status)
	require.NotNil(t, d.Evidence)
	assert.Equal(t, "1Z999", d.Evidence.TrackingNumber)
}

func TestNotificationLogRepo_Retention(t *testing.T) {
	repo := NewNotificationLogRepo(NewStore())
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Append(ctx, &storage.NotificationRecord{ID: "n1", CreatedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, repo.Append(ctx, &storage.NotificationRecord{ID: "n2", CreatedAt: now}))

	removed, err := repo.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
