package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/harborline/payguard/internal/infra/storage"
)

// NotificationLogRepo implements storage.NotificationLogRepository using
// PostgreSQL.
type NotificationLogRepo struct {
	db *DB
}

// NewNotificationLogRepo creates a new PostgreSQL notification log.
func NewNotificationLogRepo(db *DB) *NotificationLogRepo {
	return &NotificationLogRepo{db: db}
}

// Append records one notification attempt.
func (r *NotificationLogRepo) Append(ctx context.Context, rec *storage.NotificationRecord) error {
	query := `
		INSERT INTO notification_log (id, recipient, template, delivered, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Recipient, rec.Template, rec.Delivered, rec.Error, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append notification log: %w", err)
	}
	return nil
}

// DeleteOlderThan prunes log entries past the retention cutoff.
func (r *NotificationLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notification_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune notification log: %w", err)
	}
	return res.RowsAffected()
}
