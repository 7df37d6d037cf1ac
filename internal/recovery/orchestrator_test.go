package recovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harborline/payguard/internal/core/domain"
	"github.com/harborline/payguard/internal/infra/storage"
)

// =============================================================================
// Mocks
// =============================================================================

type mockFailureRepo struct {
	mu       sync.Mutex
	failures []*domain.PaymentFailure
}

func (r *mockFailureRepo) Create(ctx context.Context, f *domain.PaymentFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.failures {
		if existing.AttemptRef == f.AttemptRef {
			return storage.ErrDuplicate
		}
	}
	clone := *f
	r.failures = append(r.failures, &clone)
	return nil
}

func (r *mockFailureRepo) GetByID(ctx context.Context, id string) (*domain.PaymentFailure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.failures {
		if f.ID == id {
			clone := *f
			return &clone, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *mockFailureRepo) GetByAttemptRef(ctx context.Context, ref string) (*domain.PaymentFailure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.failures {
		if f.AttemptRef == ref {
			clone := *f
			return &clone, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *mockFailureRepo) GetNextDue(ctx context.Context, now time.Time) (*domain.PaymentFailure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.failures {
		if f.Status == domain.FailureStatusPending && f.NextRetryAt != nil && !f.NextRetryAt.After(now) {
			clone := *f
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *mockFailureRepo) UpdateRetryState(ctx context.Context, f *domain.PaymentFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.failures {
		if existing.ID == f.ID {
			if existing.Version != f.Version {
				return storage.ErrStaleRecord
			}
			clone := *f
			clone.Version++
			r.failures[i] = &clone
			f.Version++
			return nil
		}
	}
	return storage.ErrNotFound
}

func (r *mockFailureRepo) CountByStatus(ctx context.Context) (map[domain.FailureStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[domain.FailureStatus]int)
	for _, f := range r.failures {
		counts[f.Status]++
	}
	return counts, nil
}

func (r *mockFailureRepo) CountByCategorySince(ctx context.Context, category domain.FailureCategory, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, f := range r.failures {
		if f.Category == category && f.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

type sentMessage struct {
	Recipient string
	Template  string
	Data      map[string]any
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	fail bool
}

func (n *mockNotifier) Send(ctx context.Context, recipient, template string, data map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{recipient, template, data})
	if n.fail {
		return errors.New("delivery failed")
	}
	return nil
}

func (n *mockNotifier) Close() error { return nil }

func newTestOrchestrator(repo *mockFailureRepo, customer, operator *mockNotifier) *Orchestrator {
	return NewOrchestrator(repo, nil, customer, operator, OrchestratorConfig{
		ProcessingErrorThreshold: 3,
		ProcessingErrorWindow:    15 * time.Minute,
		OperatorChannel:          "#payments-ops",
	})
}

// =============================================================================
// Orchestrator Tests
// =============================================================================

func TestHandleFailure_InsufficientFunds(t *testing.T) {
	repo := &mockFailureRepo{}
	customer := &mockNotifier{}
	orch := newTestOrchestrator(repo, customer, &mockNotifier{})

	f, err := orch.HandleFailure(context.Background(), &domain.FailureEvent{
		OrderID:       "ord-1",
		AttemptRef:    "pi_1",
		CustomerEmail: "a@example.com",
		AmountCents:   4500,
		Currency:      "usd",
		Error:         &domain.ChargeError{Code: "card_declined", Message: "Your card has insufficient funds"},
	})
	if err != nil {
		t.Fatalf("HandleFailure failed: %v", err)
	}

	if f.Category != domain.CategoryInsufficientFunds {
		t.Errorf("expected insufficient_funds, got %s", f.Category)
	}
	// Predicate denies, but the table still carries a manual budget:
	// the record parks for approval instead of auto-scheduling.
	if f.CanRetry {
		t.Error("insufficient_funds must not auto-retry")
	}
	if f.Status != domain.FailureStatusAwaitingApproval {
		t.Errorf("expected awaiting_approval, got %s", f.Status)
	}
	if f.NextRetryAt != nil {
		t.Error("no retry should be scheduled")
	}

	if len(customer.sent) != 1 || customer.sent[0].Template != "payment_failed" {
		t.Fatalf("expected one payment_failed notification, got %+v", customer.sent)
	}
	if customer.sent[0].Data["message"] != CustomerMessage(domain.CategoryInsufficientFunds) {
		t.Error("customer message should match the category wording")
	}
}

func TestHandleFailure_AuthenticationRequired_ImmediateSchedule(t *testing.T) {
	repo := &mockFailureRepo{}
	orch := newTestOrchestrator(repo, &mockNotifier{}, &mockNotifier{})

	before := time.Now().UTC()
	f, err := orch.HandleFailure(context.Background(), &domain.FailureEvent{
		AttemptRef: "pi_2",
		Error:      &domain.ChargeError{Code: "authentication_required"},
	})
	if err != nil {
		t.Fatalf("HandleFailure failed: %v", err)
	}

	if f.Status != domain.FailureStatusPending {
		t.Fatalf("expected pending, got %s", f.Status)
	}
	if f.NextRetryAt == nil {
		t.Fatal("expected immediate retry schedule")
	}
	// Zero base delay: due effectively now.
	if f.NextRetryAt.Before(before) || f.NextRetryAt.After(time.Now().UTC().Add(time.Second)) {
		t.Errorf("expected zero-delay schedule, got %v", f.NextRetryAt)
	}
}

func TestHandleFailure_EmptyDescriptor(t *testing.T) {
	repo := &mockFailureRepo{}
	orch := newTestOrchestrator(repo, &mockNotifier{}, &mockNotifier{})

	f, err := orch.HandleFailure(context.Background(), &domain.FailureEvent{AttemptRef: "pi_3"})
	if err != nil {
		t.Fatalf("HandleFailure failed: %v", err)
	}
	if f.Category != domain.CategoryUnknown {
		t.Errorf("expected unknown, got %s", f.Category)
	}
	if f.Status != domain.FailureStatusAwaitingApproval {
		t.Errorf("unknown requires manual approval, got %s", f.Status)
	}
}

func TestHandleFailure_FraudGoesTerminalAndAlerts(t *testing.T) {
	repo := &mockFailureRepo{}
	customer := &mockNotifier{}
	operator := &mockNotifier{}
	orch := newTestOrchestrator(repo, customer, operator)

	f, err := orch.HandleFailure(context.Background(), &domain.FailureEvent{
		AttemptRef: "pi_4",
		Error:      &domain.ChargeError{Code: "fraudulent"},
	})
	if err != nil {
		t.Fatalf("HandleFailure failed: %v", err)
	}

	// Zero retry budget: nothing to re-arm, record goes straight terminal.
	if f.Status != domain.FailureStatusExhausted {
		t.Errorf("expected exhausted, got %s", f.Status)
	}
	if len(customer.sent) != 0 {
		t.Error("fraud must not notify the customer")
	}
	if len(operator.sent) != 1 || operator.sent[0].Data["alert"] != "fraud_suspected" {
		t.Fatalf("expected fraud operator alert, got %+v", operator.sent)
	}
}

func TestHandleFailure_HighestRiskDeniesRetry(t *testing.T) {
	repo := &mockFailureRepo{}
	orch := newTestOrchestrator(repo, &mockNotifier{}, &mockNotifier{})

	f, err := orch.HandleFailure(context.Background(), &domain.FailureEvent{
		AttemptRef: "pi_5",
		Error:      &domain.ChargeError{Type: "api_connection_error"},
		RiskLevel:  domain.RiskLevelHighest,
	})
	if err != nil {
		t.Fatalf("HandleFailure failed: %v", err)
	}
	if f.CanRetry {
		t.Error("highest risk must deny retry even for network errors")
	}
	if f.Status != domain.FailureStatusAwaitingApproval {
		t.Errorf("expected awaiting_approval, got %s", f.Status)
	}
}

func TestHandleFailure_DuplicateDelivery(t *testing.T) {
	repo := &mockFailureRepo{}
	orch := newTestOrchestrator(repo, &mockNotifier{}, &mockNotifier{})
	ctx := context.Background()

	event := &domain.FailureEvent{
		AttemptRef: "pi_6",
		Error:      &domain.ChargeError{Type: "api_error"},
	}

	first, err := orch.HandleFailure(ctx, event)
	if err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	second, err := orch.HandleFailure(ctx, event)
	if err != nil {
		t.Fatalf("second delivery failed: %v", err)
	}

	if first.ID != second.ID {
		t.Error("re-delivery must return the existing record")
	}
	if len(repo.failures) != 1 {
		t.Errorf("expected 1 record, got %d", len(repo.failures))
	}
}

func TestHandleFailure_NotificationFailureDoesNotBlockPersistence(t *testing.T) {
	repo := &mockFailureRepo{}
	customer := &mockNotifier{fail: true}
	orch := newTestOrchestrator(repo, customer, &mockNotifier{})

	f, err := orch.HandleFailure(context.Background(), &domain.FailureEvent{
		AttemptRef: "pi_7",
		Error:      &domain.ChargeError{Type: "card_error"},
	})
	if err != nil {
		t.Fatalf("HandleFailure must succeed despite notification failure: %v", err)
	}
	if f.Status != domain.FailureStatusPending {
		t.Errorf("record should still be scheduled, got %s", f.Status)
	}
}

func TestHandleFailure_ProcessingErrorSpikeAlert(t *testing.T) {
	repo := &mockFailureRepo{}
	operator := &mockNotifier{}
	orch := newTestOrchestrator(repo, &mockNotifier{}, operator)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := orch.HandleFailure(ctx, &domain.FailureEvent{
			AttemptRef: "pi_spike_" + string(rune('a'+i)),
			Error:      &domain.ChargeError{Type: "card_error"},
		})
		if err != nil {
			t.Fatalf("HandleFailure failed: %v", err)
		}
	}

	// Threshold is 3: only the third delivery fires the spike alert.
	if len(operator.sent) != 1 {
		t.Fatalf("expected 1 spike alert, got %d", len(operator.sent))
	}
	if operator.sent[0].Data["alert"] != "processing_error_spike" {
		t.Errorf("unexpected alert payload: %+v", operator.sent[0].Data)
	}
}

func TestApprove_ReArmsWithinBudget(t *testing.T) {
	repo := &mockFailureRepo{}
	orch := newTestOrchestrator(repo, &mockNotifier{}, &mockNotifier{})
	ctx := context.Background()

	f, err := orch.HandleFailure(ctx, &domain.FailureEvent{
		AttemptRef: "pi_8",
		Error:      &domain.ChargeError{Code: "card_declined", Message: "declined"},
	})
	if err != nil {
		t.Fatalf("HandleFailure failed: %v", err)
	}

	if err := orch.Approve(ctx, f.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	armed, _ := repo.GetByID(ctx, f.ID)
	if armed.Status != domain.FailureStatusPending {
		t.Errorf("expected pending after approval, got %s", armed.Status)
	}
	if armed.NextRetryAt == nil {
		t.Error("approval must schedule a retry")
	}
}

func TestApprove_RejectsExhaustedBudget(t *testing.T) {
	repo := &mockFailureRepo{}
	orch := newTestOrchestrator(repo, &mockNotifier{}, &mockNotifier{})
	ctx := context.Background()

	f, _ := orch.HandleFailure(ctx, &domain.FailureEvent{
		AttemptRef: "pi_9",
		Error:      &domain.ChargeError{Code: "card_declined", Message: "declined"},
	})

	// Burn the single card_declined re-arm.
	stored, _ := repo.GetByID(ctx, f.ID)
	stored.RetryAttempts = 1
	stored.Status = domain.FailureStatusAwaitingApproval
	if err := repo.UpdateRetryState(ctx, stored); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := orch.Approve(ctx, f.ID); err == nil {
		t.Error("Approve must refuse when the retry budget is spent")
	}
}

func TestCancel_TerminalIsIdempotent(t *testing.T) {
	repo := &mockFailureRepo{}
	orch := newTestOrchestrator(repo, &mockNotifier{}, &mockNotifier{})
	ctx := context.Background()

	f, _ := orch.HandleFailure(ctx, &domain.FailureEvent{
		AttemptRef: "pi_10",
		Error:      &domain.ChargeError{Type: "api_error"},
	})

	if err := orch.Cancel(ctx, f.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	cancelled, _ := repo.GetByID(ctx, f.ID)
	if cancelled.Status != domain.FailureStatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}

	// Second cancel is a no-op, not an error.
	if err := orch.Cancel(ctx, f.ID); err != nil {
		t.Errorf("Cancel on terminal record should be a no-op: %v", err)
	}
}
