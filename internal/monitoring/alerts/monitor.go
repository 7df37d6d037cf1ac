// Package alerts runs the periodic health sweep over the failure backlog and
// fires threshold alerts to operators, with cooldowns so a sustained condition
// alerts once per window instead of once per sweep.
package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/harborline/payguard/internal/core/domain"
	"github.com/harborline/payguard/internal/infra/notify"
	"github.com/harborline/payguard/internal/infra/storage"
	"github.com/harborline/payguard/internal/monitoring/metrics"
)

const (
	AlertPendingBacklog    = "pending_backlog"
	AlertApprovalBacklog   = "approval_backlog"
	AlertUnclassifiedSpike = "unclassified_spike"
)

// Cooler gates alert firing. The redis-backed store shares windows across
// instances; LocalCooler is the single-instance fallback.
type Cooler interface {
	ShouldFire(ctx context.Context, alert string, cooldown time.Duration) (bool, error)
	Clear(ctx context.Context, alert string) error
}

// LocalCooler keeps cooldown windows in process memory.
type LocalCooler struct {
	mu    sync.Mutex
	fired map[string]time.Time
}

// NewLocalCooler creates an in-process cooler.
func NewLocalCooler() *LocalCooler {
	return &LocalCooler{fired: make(map[string]time.Time)}
}

func (c *LocalCooler) ShouldFire(_ context.Context, alert string, cooldown time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if last, ok := c.fired[alert]; ok && time.Since(last) < cooldown {
		return false, nil
	}
	c.fired[alert] = time.Now()
	return true, nil
}

func (c *LocalCooler) Clear(_ context.Context, alert string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.fired, alert)
	return nil
}

// Config holds alert monitor settings.
type Config struct {
	Interval              time.Duration
	PendingThreshold      int
	ApprovalThreshold     int
	UnclassifiedWindow    time.Duration
	UnclassifiedThreshold int
	Cooldown              time.Duration
	OperatorChannel       string
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Interval <= 0 {
		out.Interval = time.Minute
	}
	if out.PendingThreshold <= 0 {
		out.PendingThreshold = 50
	}
	if out.ApprovalThreshold <= 0 {
		out.ApprovalThreshold = 20
	}
	if out.UnclassifiedWindow <= 0 {
		out.UnclassifiedWindow = time.Hour
	}
	if out.UnclassifiedThreshold <= 0 {
		out.UnclassifiedThreshold = 10
	}
	if out.Cooldown <= 0 {
		out.Cooldown = 30 * time.Minute
	}
	return out
}

// Monitor periodically evaluates backlog health.
type Monitor struct {
	failures storage.FailureRepository
	operator notify.Notifier
	cooler   Cooler
	cfg      Config
	log      *slog.Logger
}

// NewMonitor creates an alert monitor. A nil cooler falls back to an
// in-process one.
func NewMonitor(failures storage.FailureRepository, operator notify.Notifier, cooler Cooler, cfg Config) *Monitor {
	if cooler == nil {
		cooler = NewLocalCooler()
	}
	return &Monitor{
		failures: failures,
		operator: operator,
		cooler:   cooler,
		cfg:      cfg.withDefaults(),
		log:      slog.With("component", "alert_monitor"),
	}
}

// Start runs the sweep loop until the context is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.log.Info("Alert monitor started", "interval", m.cfg.Interval)
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("Alert monitor stopped")
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep runs one evaluation pass: refreshes gauges and fires any threshold
// alerts outside their cooldown window.
func (m *Monitor) Sweep(ctx context.Context) {
	counts, err := m.failures.CountByStatus(ctx)
	if err != nil {
		m.log.Error("Backlog count failed", "error", err)
		return
	}

	pending := counts[domain.FailureStatusPending] + counts[domain.FailureStatusRetrying]
	awaiting := counts[domain.FailureStatusAwaitingApproval]
	metrics.PendingFailures.Set(float64(pending))
	metrics.AwaitingApproval.Set(float64(awaiting))

	m.check(ctx, AlertPendingBacklog, pending, m.cfg.PendingThreshold, map[string]any{
		"pending": pending,
	})
	m.check(ctx, AlertApprovalBacklog, awaiting, m.cfg.ApprovalThreshold, map[string]any{
		"awaiting_approval": awaiting,
	})

	// A burst of unclassified failures usually means the provider started
	// returning an error shape the classifier has never seen.
	unclassified, err := m.failures.CountByCategorySince(ctx, domain.CategoryUnknown, time.Now().Add(-m.cfg.UnclassifiedWindow))
	if err != nil {
		m.log.Error("Unclassified count failed", "error", err)
		return
	}
	m.check(ctx, AlertUnclassifiedSpike, unclassified, m.cfg.UnclassifiedThreshold, map[string]any{
		"unclassified": unclassified,
		"window":       m.cfg.UnclassifiedWindow.String(),
	})
}

func (m *Monitor) check(ctx context.Context, alert string, value, threshold int, data map[string]any) {
	if value < threshold {
		if err := m.cooler.Clear(ctx, alert); err != nil {
			m.log.Warn("Cooldown clear failed", "alert", alert, "error", err)
		}
		return
	}

	fire, err := m.cooler.ShouldFire(ctx, alert, m.cfg.Cooldown)
	if err != nil {
		m.log.Error("Cooldown check failed", "alert", alert, "error", err)
		return
	}
	if !fire {
		return
	}

	metrics.AlertsFired.WithLabelValues(alert).Inc()
	m.log.Warn("Threshold alert", "alert", alert, "value", value, "threshold", threshold)

	if m.operator == nil || m.cfg.OperatorChannel == "" {
		return
	}
	data["alert"] = alert
	data["threshold"] = threshold
	if err := m.operator.Send(ctx, m.cfg.OperatorChannel, notify.TemplateOperatorAlert, data); err != nil {
		m.log.Error("Alert dispatch failed", "alert", alert, "error", err)
	}
}
