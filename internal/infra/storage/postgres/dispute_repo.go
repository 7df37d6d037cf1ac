package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/harborline/payguard/internal/core/domain"
	"github.com/harborline/payguard/internal/infra/storage"
)

// DisputeRepo implements storage.DisputeRepository using PostgreSQL.
type DisputeRepo struct {
	db *DB
}

// NewDisputeRepo creates a new PostgreSQL dispute repository.
func NewDisputeRepo(db *DB) *DisputeRepo {
	return &DisputeRepo{db: db}
}

type disputeRow struct {
	ID            string       `db:"id"`
	AttemptRef    string       `db:"attempt_ref"`
	OrderID       string       `db:"order_id"`
	AmountCents   int64        `db:"amount_cents"`
	Currency      string       `db:"currency"`
	Reason        string       `db:"reason"`
	Status        string       `db:"status"`
	EvidenceDueAt sql.NullTime `db:"evidence_due_at"`
	Evidence      []byte       `db:"evidence"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
}

func (r disputeRow) toDomain() (*domain.Dispute, error) {
	d := &domain.Dispute{
		ID:          r.ID,
		AttemptRef:  r.AttemptRef,
		OrderID:     r.OrderID,
		AmountCents: r.AmountCents,
		Currency:    r.Currency,
		Reason:      r.Reason,
		Status:      domain.DisputeStatus(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.EvidenceDueAt.Valid {
		t := r.EvidenceDueAt.Time
		d.EvidenceDueAt = &t
	}
	if len(r.Evidence) > 0 {
		var ev domain.DisputeEvidence
		if err := json.Unmarshal(r.Evidence, &ev); err != nil {
			return nil, fmt.Errorf("failed to unmarshal evidence: %w", err)
		}
		d.Evidence = &ev
	}
	return d, nil
}

// Create inserts a new dispute. Re-delivery maps to storage.ErrDuplicate.
func (r *DisputeRepo) Create(ctx context.Context, d *domain.Dispute) error {
	query := `
		INSERT INTO disputes (
			id, attempt_ref, order_id, amount_cents, currency, reason,
			status, evidence_due_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`
	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.AttemptRef, d.OrderID, d.AmountCents, d.Currency, d.Reason,
		string(d.Status), d.EvidenceDueAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("failed to insert dispute: %w", err)
	}
	return nil
}

// GetByID retrieves a dispute.
func (r *DisputeRepo) GetByID(ctx context.Context, id string) (*domain.Dispute, error) {
	var row disputeRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM disputes WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dispute: %w", err)
	}
	return row.toDomain()
}

// AttachEvidence stores the evidence bundle and marks the dispute submitted.
func (r *DisputeRepo) AttachEvidence(ctx context.Context, id string, ev *domain.DisputeEvidence) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE disputes SET evidence = $1, status = $2, updated_at = NOW() WHERE id = $3`,
		data, string(domain.DisputeStatusSubmitted), id)
	if err != nil {
		return fmt.Errorf("failed to attach evidence: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateStatus records an externally driven status change.
func (r *DisputeRepo) UpdateStatus(ctx context.Context, id string, status domain.DisputeStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE disputes SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update dispute status: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListOpen returns disputes not yet won or lost.
func (r *DisputeRepo) ListOpen(ctx context.Context) ([]*domain.Dispute, error) {
	var rows []disputeRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM disputes WHERE status NOT IN ('won', 'lost') ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list open disputes: %w", err)
	}

	disputes := make([]*domain.Dispute, 0, len(rows))
	for _, row := range rows {
		d, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		disputes = append(disputes, d)
	}
	return disputes, nil
}
