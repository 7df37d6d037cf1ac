// Package memory provides in-memory repository implementations used for
// development mode and tests when no database URL is configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/harborline/payguard/internal/core/domain"
	"github.com/harborline/payguard/internal/infra/storage"
)

// Store holds all in-memory state behind one lock.
type Store struct {
	mu            sync.RWMutex
	failures      map[string]*domain.PaymentFailure
	byAttemptRef  map[string]string // attempt_ref -> failure id
	disputes      map[string]*domain.Dispute
	notifications []*storage.NotificationRecord
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		failures:     make(map[string]*domain.PaymentFailure),
		byAttemptRef: make(map[string]string),
		disputes:     make(map[string]*domain.Dispute),
	}
}

// FailureRepo implements storage.FailureRepository on a Store.
type FailureRepo struct {
	store *Store
}

// NewFailureRepo creates an in-memory failure repository.
func NewFailureRepo(store *Store) *FailureRepo {
	return &FailureRepo{store: store}
}

func (r *FailureRepo) Create(ctx context.Context, f *domain.PaymentFailure) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.byAttemptRef[f.AttemptRef]; ok {
		return storage.ErrDuplicate
	}
	clone := *f
	r.store.failures[f.ID] = &clone
	r.store.byAttemptRef[f.AttemptRef] = f.ID
	return nil
}

func (r *FailureRepo) GetByID(ctx context.Context, id string) (*domain.PaymentFailure, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	f, ok := r.store.failures[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *f
	return &clone, nil
}

func (r *FailureRepo) GetByAttemptRef(ctx context.Context, attemptRef string) (*domain.PaymentFailure, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	id, ok := r.store.byAttemptRef[attemptRef]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *r.store.failures[id]
	return &clone, nil
}

func (r *FailureRepo) GetNextDue(ctx context.Context, now time.Time) (*domain.PaymentFailure, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var next *domain.PaymentFailure
	for _, f := range r.store.failures {
		if f.Status != domain.FailureStatusPending || f.NextRetryAt == nil || f.NextRetryAt.After(now) {
			continue
		}
		if next == nil || f.NextRetryAt.Before(*next.NextRetryAt) {
			next = f
		}
	}
	if next == nil {
		return nil, nil
	}
	clone := *next
	return &clone, nil
}

func (r *FailureRepo) UpdateRetryState(ctx context.Context, f *domain.PaymentFailure) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing, ok := r.store.failures[f.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if existing.Version != f.Version {
		return storage.ErrStaleRecord
	}
	clone := *f
	clone.Version++
	clone.UpdatedAt = time.Now().UTC()
	r.store.failures[f.ID] = &clone
	f.Version++
	return nil
}

func (r *FailureRepo) CountByStatus(ctx context.Context) (map[domain.FailureStatus]int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	counts := make(map[domain.FailureStatus]int)
	for _, f := range r.store.failures {
		counts[f.Status]++
	}
	return counts, nil
}

func (r *FailureRepo) CountByCategorySince(ctx context.Context, category domain.FailureCategory, since time.Time) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	count := 0
	for _, f := range r.store.failures {
		if f.Category == category && f.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

// DisputeRepo implements storage.DisputeRepository on a Store.
type DisputeRepo struct {
	store *Store
}

// NewDisputeRepo creates an in-memory dispute repository.
func NewDisputeRepo(store *Store) *DisputeRepo {
	return &DisputeRepo{store: store}
}

func (r *DisputeRepo) Create(ctx context.Context, d *domain.Dispute) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.disputes {
		if existing.AttemptRef == d.AttemptRef {
			return storage.ErrDuplicate
		}
	}
	clone := *d
	r.store.disputes[d.ID] = &clone
	return nil
}

func (r *DisputeRepo) GetByID(ctx context.Context, id string) (*domain.Dispute, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	d, ok := r.store.disputes[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *d
	return &clone, nil
}

func (r *DisputeRepo) AttachEvidence(ctx context.Context, id string, ev *domain.DisputeEvidence) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	d, ok := r.store.disputes[id]
	if !ok {
		return storage.ErrNotFound
	}
	evClone := *ev
	d.Evidence = &evClone
	d.Status = domain.DisputeStatusSubmitted
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *DisputeRepo) UpdateStatus(ctx context.Context, id string, status domain.DisputeStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	d, ok := r.store.disputes[id]
	if !ok {
		return storage.ErrNotFound
	}
	d.Status = status
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *DisputeRepo) ListOpen(ctx context.Context) ([]*domain.Dispute, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var open []*domain.Dispute
	for _, d := range r.store.disputes {
		if d.Status == domain.DisputeStatusWon || d.Status == domain.DisputeStatusLost {
			continue
		}
		clone := *d
		open = append(open, &clone)
	}
	return open, nil
}

// NotificationLogRepo implements storage.NotificationLogRepository on a Store.
type NotificationLogRepo struct {
	store *Store
}

// NewNotificationLogRepo creates an in-memory notification log.
func NewNotificationLogRepo(store *Store) *NotificationLogRepo {
	return &NotificationLogRepo{store: store}
}

func (r *NotificationLogRepo) Append(ctx context.Context, rec *storage.NotificationRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	clone := *rec
	r.store.notifications = append(r.store.notifications, &clone)
	return nil
}

func (r *NotificationLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.notifications[:0]
	var removed int64
	for _, rec := range r.store.notifications {
		if rec.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	r.store.notifications = kept
	return removed, nil
}
