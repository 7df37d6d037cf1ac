package recovery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/harborline/payguard/internal/core/domain"
	"github.com/harborline/payguard/internal/infra/notify"
	"github.com/harborline/payguard/internal/infra/provider"
	"github.com/harborline/payguard/internal/infra/storage"
	"github.com/harborline/payguard/internal/monitoring/metrics"
)

// Locker serializes retry execution per record across instances.
// Implemented by the Redis client; a nil Locker disables cross-instance
// locking (single-instance deployments, tests).
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// ExecutorConfig holds retry executor tunables.
type ExecutorConfig struct {
	// PollInterval is the delay between due-record scans.
	PollInterval time.Duration
	// LockTTL bounds how long a crashed instance can hold a record.
	LockTTL time.Duration
}

// Executor drains due retries: it re-executes the charge and transitions the
// record to resolved, rescheduled, or exhausted. All transitions go through
// versioned updates, so a concurrent writer makes this executor lose cleanly.
type Executor struct {
	failures storage.FailureRepository
	charger  provider.ChargeProvider
	orch     *Orchestrator
	locker   Locker
	cfg      ExecutorConfig
	log      *slog.Logger
}

// NewExecutor creates a new retry executor.
func NewExecutor(
	failures storage.FailureRepository,
	charger provider.ChargeProvider,
	orch *Orchestrator,
	locker Locker,
	cfg ExecutorConfig,
) *Executor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	return &Executor{
		failures: failures,
		charger:  charger,
		orch:     orch,
		locker:   locker,
		cfg:      cfg,
		log:      slog.With("component", "retry_executor"),
	}
}

// Start runs the executor loop until the context is cancelled.
func (e *Executor) Start(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	e.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.drain(ctx)
		}
	}
}

// drain processes due records until none remain or the context ends.
func (e *Executor) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		processed, err := e.ProcessNext(ctx)
		if err != nil {
			e.log.Error("Retry processing failed", "error", err)
			return
		}
		if !processed {
			return
		}
	}
}

// ProcessNext executes at most one due retry. It reports whether a record
// was picked up, so callers can keep draining.
func (e *Executor) ProcessNext(ctx context.Context) (bool, error) {
	failure, err := e.failures.GetNextDue(ctx, time.Now().UTC())
	if err != nil {
		return false, err
	}
	if failure == nil {
		return false, nil
	}

	if e.locker != nil {
		ok, err := e.locker.AcquireLock(ctx, "retry:"+failure.ID, e.cfg.LockTTL)
		if err != nil {
			return false, err
		}
		if !ok {
			// Another instance holds it; report progress so the caller
			// does not spin on the same record.
			return false, nil
		}
		defer func() { _ = e.locker.ReleaseLock(ctx, "retry:"+failure.ID) }()
	}

	return true, e.execute(ctx, failure)
}

func (e *Executor) execute(ctx context.Context, failure *domain.PaymentFailure) error {
	// Claim the record. A stale version means a duplicate delivery or a
	// cancellation beat us to it; the timer fire becomes a no-op.
	now := time.Now().UTC()
	failure.Status = domain.FailureStatusRetrying
	failure.LastRetryAt = &now
	if err := e.failures.UpdateRetryState(ctx, failure); err != nil {
		if errors.Is(err, storage.ErrStaleRecord) {
			e.log.Debug("Lost retry claim, skipping", "id", failure.ID)
			return nil
		}
		return err
	}

	strategy := StrategyFor(failure.Category)

	result, err := e.charger.Charge(ctx, &provider.ChargeRequest{
		AttemptRef:  failure.AttemptRef,
		OrderID:     failure.OrderID,
		AmountCents: failure.AmountCents,
		Currency:    failure.Currency,
	})
	if err != nil {
		// Infrastructure failure: the charge never happened, so the retry
		// budget is untouched. Put the record back and try again later.
		e.log.Warn("Provider unreachable, rescheduling", "id", failure.ID, "error", err)
		due := time.Now().UTC().Add(strategy.BaseDelay)
		failure.Status = domain.FailureStatusPending
		failure.NextRetryAt = &due
		return e.failures.UpdateRetryState(ctx, failure)
	}

	if result.Status == domain.ChargeStatusSucceeded {
		return e.resolve(ctx, failure, strategy)
	}
	return e.recordFailedAttempt(ctx, failure, strategy)
}

func (e *Executor) resolve(ctx context.Context, failure *domain.PaymentFailure, strategy RetryStrategy) error {
	failure.Status = domain.FailureStatusResolved
	failure.NextRetryAt = nil
	if err := e.failures.UpdateRetryState(ctx, failure); err != nil {
		return err
	}

	metrics.RetriesExecuted.WithLabelValues(string(failure.Category), "success").Inc()
	e.log.Info("Payment recovered", "id", failure.ID, "attempts", failure.RetryAttempts+1)

	if strategy.NotifyCustomer && e.orch != nil {
		e.orch.dispatch(ctx, e.orch.customer, failure.CustomerEmail, notify.TemplatePaymentRecovered, map[string]any{
			"order_id": failure.OrderID,
		})
	}
	return nil
}

func (e *Executor) recordFailedAttempt(ctx context.Context, failure *domain.PaymentFailure, strategy RetryStrategy) error {
	failure.RetryAttempts++
	metrics.RetriesExecuted.WithLabelValues(string(failure.Category), "failure").Inc()

	if failure.RetryAttempts >= strategy.MaxRetries {
		failure.Status = domain.FailureStatusExhausted
		failure.NextRetryAt = nil
		metrics.RetriesExhausted.WithLabelValues(string(failure.Category)).Inc()
		e.log.Info("Retry budget exhausted",
			"id", failure.ID, "attempts", failure.RetryAttempts, "max", strategy.MaxRetries)
	} else {
		due := time.Now().UTC().Add(NextDelay(strategy, failure.RetryAttempts))
		failure.Status = domain.FailureStatusPending
		failure.NextRetryAt = &due
		e.log.Info("Retry failed, rescheduled",
			"id", failure.ID, "attempts", failure.RetryAttempts, "due", due)
	}

	return e.failures.UpdateRetryState(ctx, failure)
}
