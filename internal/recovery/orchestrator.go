package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/harborline/payguard/internal/core/domain"
	"github.com/harborline/payguard/internal/infra/notify"
	"github.com/harborline/payguard/internal/infra/storage"
	"github.com/harborline/payguard/internal/monitoring/metrics"
)

// OrchestratorConfig holds tunables for failure intake.
type OrchestratorConfig struct {
	// ProcessingErrorThreshold is the number of processing errors inside
	// ProcessingErrorWindow that triggers an operator alert. The original
	// system left this unspecified; it is configurable here.
	ProcessingErrorThreshold int
	ProcessingErrorWindow    time.Duration
	// OperatorChannel is the recipient for operator alerts.
	OperatorChannel string
}

// Orchestrator handles inbound payment failures: classify, decide
// retryability, persist, schedule, notify.
type Orchestrator struct {
	failures storage.FailureRepository
	notifLog storage.NotificationLogRepository
	customer notify.Notifier
	operator notify.Notifier
	cfg      OrchestratorConfig
	log      *slog.Logger
}

// NewOrchestrator creates a new failure orchestrator. notifLog may be nil.
func NewOrchestrator(
	failures storage.FailureRepository,
	notifLog storage.NotificationLogRepository,
	customer notify.Notifier,
	operator notify.Notifier,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.ProcessingErrorThreshold <= 0 {
		cfg.ProcessingErrorThreshold = 5
	}
	if cfg.ProcessingErrorWindow <= 0 {
		cfg.ProcessingErrorWindow = 15 * time.Minute
	}
	return &Orchestrator{
		failures: failures,
		notifLog: notifLog,
		customer: customer,
		operator: operator,
		cfg:      cfg,
		log:      slog.With("component", "orchestrator"),
	}
}

// HandleFailure processes one failure event end to end. Re-deliveries of the
// same payment attempt return the existing record unchanged.
//
// Only persistence errors propagate; notification dispatch is best-effort and
// never rolls back classification or scheduling.
func (o *Orchestrator) HandleFailure(ctx context.Context, event *domain.FailureEvent) (*domain.PaymentFailure, error) {
	if existing, err := o.failures.GetByAttemptRef(ctx, event.AttemptRef); err == nil && existing != nil {
		o.log.Debug("Duplicate failure delivery ignored", "attempt_ref", event.AttemptRef)
		return existing, nil
	} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for existing failure: %w", err)
	}

	category := Classify(event.Error)
	strategy := StrategyFor(category)
	canRetry := CanRetry(category, event.RiskLevel) && strategy.MaxRetries > 0

	now := time.Now().UTC()
	failure := &domain.PaymentFailure{
		ID:            uuid.New().String(),
		OrderID:       event.OrderID,
		AttemptRef:    event.AttemptRef,
		CustomerEmail: event.CustomerEmail,
		AmountCents:   event.AmountCents,
		Currency:      event.Currency,
		Reason:        rawReason(event.Error),
		Category:      category,
		CanRetry:      canRetry,
		Status:        domain.FailureStatusExhausted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	switch {
	case canRetry:
		due := now.Add(NextDelay(strategy, 0))
		failure.Status = domain.FailureStatusPending
		failure.NextRetryAt = &due
	case strategy.MaxRetries > 0:
		// Retry budget exists but the predicate said no: park for an
		// operator to re-arm (covers card_declined, insufficient_funds,
		// unknown, and any highest-risk charge).
		failure.Status = domain.FailureStatusAwaitingApproval
	}

	if err := o.failures.Create(ctx, failure); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return o.failures.GetByAttemptRef(ctx, event.AttemptRef)
		}
		return nil, fmt.Errorf("failed to persist failure: %w", err)
	}

	metrics.FailuresClassified.WithLabelValues(string(category)).Inc()
	o.log.Info("Payment failure recorded",
		"attempt_ref", failure.AttemptRef,
		"category", category,
		"status", failure.Status,
		"can_retry", canRetry)

	if strategy.NotifyCustomer {
		o.dispatch(ctx, o.customer, event.CustomerEmail, notify.TemplatePaymentFailed, map[string]any{
			"order_id": event.OrderID,
			"message":  CustomerMessage(category),
		})
	}
	o.alertOperator(ctx, failure)

	return failure, nil
}

// Approve re-arms an awaiting-approval record for one more attempt. The
// record's retry budget still applies.
func (o *Orchestrator) Approve(ctx context.Context, id string) error {
	failure, err := o.failures.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load failure: %w", err)
	}
	if failure.Status != domain.FailureStatusAwaitingApproval {
		return fmt.Errorf("failure %s is %s, not awaiting approval", id, failure.Status)
	}

	strategy := StrategyFor(failure.Category)
	if failure.RetryAttempts >= strategy.MaxRetries {
		return fmt.Errorf("failure %s has no retry budget left (%d/%d)",
			id, failure.RetryAttempts, strategy.MaxRetries)
	}

	due := time.Now().UTC().Add(strategy.BaseDelay)
	failure.Status = domain.FailureStatusPending
	failure.NextRetryAt = &due
	if err := o.failures.UpdateRetryState(ctx, failure); err != nil {
		return fmt.Errorf("failed to re-arm failure: %w", err)
	}
	o.log.Info("Failure approved for retry", "id", id, "due", due)
	return nil
}

// Cancel marks a record terminal so a later due timer becomes a no-op,
// e.g. when the order was cancelled before the retry fired.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	failure, err := o.failures.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load failure: %w", err)
	}
	if failure.Status.Terminal() {
		return nil
	}

	failure.Status = domain.FailureStatusCancelled
	failure.NextRetryAt = nil
	if err := o.failures.UpdateRetryState(ctx, failure); err != nil {
		return fmt.Errorf("failed to cancel failure: %w", err)
	}
	o.log.Info("Failure cancelled", "id", id)
	return nil
}

// alertOperator fires operator alerts for critical categories: fraud always,
// processing errors above the configured frequency threshold.
func (o *Orchestrator) alertOperator(ctx context.Context, failure *domain.PaymentFailure) {
	switch failure.Category {
	case domain.CategoryFraudSuspected:
		o.dispatch(ctx, o.operator, o.cfg.OperatorChannel, notify.TemplateOperatorAlert, map[string]any{
			"alert":       "fraud_suspected",
			"attempt_ref": failure.AttemptRef,
			"order_id":    failure.OrderID,
			"amount":      failure.AmountCents,
			"currency":    failure.Currency,
		})
	case domain.CategoryProcessingError:
		since := time.Now().UTC().Add(-o.cfg.ProcessingErrorWindow)
		count, err := o.failures.CountByCategorySince(ctx, domain.CategoryProcessingError, since)
		if err != nil {
			o.log.Warn("Failed to count processing errors", "error", err)
			return
		}
		if count >= o.cfg.ProcessingErrorThreshold {
			o.dispatch(ctx, o.operator, o.cfg.OperatorChannel, notify.TemplateOperatorAlert, map[string]any{
				"alert":  "processing_error_spike",
				"count":  count,
				"window": o.cfg.ProcessingErrorWindow.String(),
			})
		}
	}
}

// dispatch sends a notification and records the attempt. Failures are logged
// and swallowed: notifications are not transactional with state changes.
func (o *Orchestrator) dispatch(ctx context.Context, n notify.Notifier, recipient, template string, data map[string]any) {
	if n == nil || recipient == "" {
		return
	}

	err := n.Send(ctx, recipient, template, data)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		o.log.Warn("Notification dispatch failed",
			"template", template, "recipient", recipient, "error", err)
	}
	metrics.NotificationsSent.WithLabelValues(template, outcome).Inc()

	if o.notifLog != nil {
		rec := &storage.NotificationRecord{
			ID:        uuid.New().String(),
			Recipient: recipient,
			Template:  template,
			Delivered: err == nil,
			CreatedAt: time.Now().UTC(),
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if logErr := o.notifLog.Append(ctx, rec); logErr != nil {
			o.log.Warn("Failed to append notification log", "error", logErr)
		}
	}
}

func rawReason(chargeErr *domain.ChargeError) string {
	if chargeErr == nil {
		return ""
	}
	if chargeErr.Message != "" {
		return chargeErr.Message
	}
	return chargeErr.Code
}
