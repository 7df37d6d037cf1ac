package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/harborline/payguard/internal/infra/storage"
)

// Pruner deletes old notification log entries based on retention policy.
// Failure and dispute records are never pruned.
type Pruner struct {
	retention time.Duration
	notifLog  storage.NotificationLogRepository
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, notifLog storage.NotificationLogRepository) *Pruner {
	return &Pruner{
		retention: retention,
		notifLog:  notifLog,
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Calculate check interval (10% of retention period, clamped to 1m..1h)
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	cutoff := time.Now().Add(-p.retention)

	removed, err := p.notifLog.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("Notification log prune failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Debug("Pruned notification log", "removed", removed, "cutoff", cutoff)
	}
}
