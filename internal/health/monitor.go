package health

import (
	"context"
	"sync"
	"time"

	"github.com/harborline/payguard/internal/core/domain"
	"github.com/harborline/payguard/internal/infra/storage"
)

// Thresholds control when the backlog tips the system into degraded or
// critical state.
type Thresholds struct {
	DegradedPending  int
	CriticalPending  int
	DegradedApproval int
	CriticalApproval int
}

// DefaultThresholds returns the stock thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DegradedPending:  25,
		CriticalPending:  100,
		DegradedApproval: 10,
		CriticalApproval: 50,
	}
}

// Monitor aggregates health status from storage-backed backlogs.
type Monitor struct {
	failures   storage.FailureRepository
	disputes   storage.DisputeRepository
	thresholds Thresholds
	lastCheck  time.Time
	lastReport *Report
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor.
func NewMonitor(failures storage.FailureRepository, disputes storage.DisputeRepository, thresholds Thresholds) *Monitor {
	return &Monitor{
		failures:   failures,
		disputes:   disputes,
		thresholds: thresholds,
	}
}

// CheckHealth builds the current health report.
func (m *Monitor) CheckHealth(ctx context.Context) *Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rate limit checks (max once per 10s) to avoid hammering storage
	if time.Since(m.lastCheck) < 10*time.Second && m.lastReport != nil {
		return m.lastReport
	}

	report := &Report{
		Status:    StatusHealthy,
		StorageOK: true,
	}

	counts, err := m.failures.CountByStatus(ctx)
	if err != nil {
		report.Status = StatusCritical
		report.StorageOK = false
		m.lastCheck = time.Now()
		m.lastReport = report
		return report
	}
	report.PendingRetries = counts[domain.FailureStatusPending] + counts[domain.FailureStatusRetrying]
	report.AwaitingApproval = counts[domain.FailureStatusAwaitingApproval]
	report.Exhausted = counts[domain.FailureStatusExhausted]

	if m.disputes != nil {
		open, err := m.disputes.ListOpen(ctx)
		if err == nil {
			report.OpenDisputes = len(open)
		}
	}

	switch {
	case report.PendingRetries >= m.thresholds.CriticalPending ||
		report.AwaitingApproval >= m.thresholds.CriticalApproval:
		report.Status = StatusCritical
	case report.PendingRetries >= m.thresholds.DegradedPending ||
		report.AwaitingApproval >= m.thresholds.DegradedApproval:
		report.Status = StatusDegraded
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
