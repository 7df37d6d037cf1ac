package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/harborline/payguard/internal/core/domain"
	"github.com/harborline/payguard/internal/infra/storage"
)

// FailureRepo implements storage.FailureRepository using PostgreSQL.
type FailureRepo struct {
	db *DB
}

// NewFailureRepo creates a new PostgreSQL failure repository.
func NewFailureRepo(db *DB) *FailureRepo {
	return &FailureRepo{db: db}
}

type failureRow struct {
	ID            string       `db:"id"`
	OrderID       string       `db:"order_id"`
	AttemptRef    string       `db:"attempt_ref"`
	CustomerEmail string       `db:"customer_email"`
	AmountCents   int64        `db:"amount_cents"`
	Currency      string       `db:"currency"`
	Reason        string       `db:"reason"`
	Category      string       `db:"category"`
	CanRetry      bool         `db:"can_retry"`
	RetryAttempts int          `db:"retry_attempts"`
	Status        string       `db:"status"`
	Version       int          `db:"version"`
	NextRetryAt   sql.NullTime `db:"next_retry_at"`
	LastRetryAt   sql.NullTime `db:"last_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
}

const failureColumns = `
	id, order_id, attempt_ref, customer_email, amount_cents, currency,
	reason, category, can_retry, retry_attempts, status, version,
	next_retry_at, last_retry_at, created_at, updated_at
`

func (r failureRow) toDomain() *domain.PaymentFailure {
	f := &domain.PaymentFailure{
		ID:            r.ID,
		OrderID:       r.OrderID,
		AttemptRef:    r.AttemptRef,
		CustomerEmail: r.CustomerEmail,
		AmountCents:   r.AmountCents,
		Currency:      r.Currency,
		Reason:        r.Reason,
		Category:      domain.FailureCategory(r.Category),
		CanRetry:      r.CanRetry,
		RetryAttempts: r.RetryAttempts,
		Status:        domain.FailureStatus(r.Status),
		Version:       r.Version,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.NextRetryAt.Valid {
		t := r.NextRetryAt.Time
		f.NextRetryAt = &t
	}
	if r.LastRetryAt.Valid {
		t := r.LastRetryAt.Time
		f.LastRetryAt = &t
	}
	return f
}

// Create inserts a new failure record. Attempt references are unique; a
// conflicting insert maps to storage.ErrDuplicate.
func (r *FailureRepo) Create(ctx context.Context, f *domain.PaymentFailure) error {
	query := `
		INSERT INTO payment_failures (
			id, order_id, attempt_ref, customer_email, amount_cents, currency,
			reason, category, can_retry, retry_attempts, status, version,
			next_retry_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12, NOW(), NOW())
	`
	_, err := r.db.ExecContext(ctx, query,
		f.ID, f.OrderID, f.AttemptRef, f.CustomerEmail, f.AmountCents, f.Currency,
		f.Reason, string(f.Category), f.CanRetry, f.RetryAttempts, string(f.Status),
		f.NextRetryAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("failed to insert payment failure: %w", err)
	}
	return nil
}

// GetByID retrieves a failure record.
func (r *FailureRepo) GetByID(ctx context.Context, id string) (*domain.PaymentFailure, error) {
	var row failureRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+failureColumns+` FROM payment_failures WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment failure: %w", err)
	}
	return row.toDomain(), nil
}

// GetByAttemptRef retrieves a failure record by provider attempt reference.
func (r *FailureRepo) GetByAttemptRef(ctx context.Context, attemptRef string) (*domain.PaymentFailure, error) {
	var row failureRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+failureColumns+` FROM payment_failures WHERE attempt_ref = $1`, attemptRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment failure by attempt: %w", err)
	}
	return row.toDomain(), nil
}

// GetNextDue returns the oldest pending record due at or before now.
func (r *FailureRepo) GetNextDue(ctx context.Context, now time.Time) (*domain.PaymentFailure, error) {
	query := `
		SELECT ` + failureColumns + `
		FROM payment_failures
		WHERE status = 'pending' AND next_retry_at IS NOT NULL AND next_retry_at <= $1
		ORDER BY next_retry_at ASC
		LIMIT 1
	`
	var row failureRow
	err := r.db.GetContext(ctx, &row, query, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Nothing due
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get next due failure: %w", err)
	}
	return row.toDomain(), nil
}

// UpdateRetryState applies a retry transition with an optimistic version
// check. Zero rows affected means the stored version moved on.
func (r *FailureRepo) UpdateRetryState(ctx context.Context, f *domain.PaymentFailure) error {
	query := `
		UPDATE payment_failures
		SET status = $1, retry_attempts = $2, next_retry_at = $3,
		    last_retry_at = $4, version = version + 1, updated_at = NOW()
		WHERE id = $5 AND version = $6
	`
	res, err := r.db.ExecContext(ctx, query,
		string(f.Status), f.RetryAttempts, f.NextRetryAt, f.LastRetryAt, f.ID, f.Version)
	if err != nil {
		return fmt.Errorf("failed to update retry state: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrStaleRecord
	}

	f.Version++
	return nil
}

// CountByStatus returns record counts grouped by status.
func (r *FailureRepo) CountByStatus(ctx context.Context) (map[domain.FailureStatus]int, error) {
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}{}
	err := r.db.SelectContext(ctx, &rows,
		`SELECT status, COUNT(*) AS count FROM payment_failures GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count failures by status: %w", err)
	}

	counts := make(map[domain.FailureStatus]int, len(rows))
	for _, row := range rows {
		counts[domain.FailureStatus(row.Status)] = row.Count
	}
	return counts, nil
}

// CountByCategorySince counts records of a category created after the cutoff.
func (r *FailureRepo) CountByCategorySince(ctx context.Context, category domain.FailureCategory, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM payment_failures WHERE category = $1 AND created_at > $2`,
		string(category), since)
	if err != nil {
		return 0, fmt.Errorf("failed to count failures by category: %w", err)
	}
	return count, nil
}
