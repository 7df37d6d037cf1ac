// Package dispute handles the chargeback sub-flow: recording provider
// dispute notifications, assembling evidence, and tracking externally driven
// resolution. Disputes are never auto-resolved by this service.
package dispute

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

// OrderInfo is the order data the evidence bundle is assembled from.
type OrderInfo struct {
	ShippingCarrier string
	TrackingNumber  string
	ShippedAt       time.Time
	EmailThread     string
	Notes           string
}

// Handler processes chargeback events.
type Handler struct {
	disputes        storage.DisputeRepository
	operator        notify.Notifier
	operatorChannel string
	log             *slog.Logger
}

// NewHandler creates a new dispute handler.
func NewHandler(disputes storage.DisputeRepository, operator notify.Notifier, operatorChannel string) *Handler {
	return &Handler{
		disputes:        disputes,
		operator:        operator,
		operatorChannel: operatorChannel,
		log:             slog.With("component", "dispute_handler"),
	}
}

// Open records a new chargeback and alerts operators. Re-deliveries return
// the already-recorded dispute.
func (h *Handler) Open(ctx context.Context, event *domain.DisputeEvent) (*domain.Dispute, error) {
	now := time.Now().UTC()
	d := &domain.Dispute{
		ID:            uuid.New().String(),
		AttemptRef:    event.AttemptRef,
		OrderID:       event.OrderID,
		AmountCents:   event.AmountCents,
		Currency:      event.Currency,
		Reason:        event.Reason,
		Status:        domain.DisputeStatusEvidenceNeeded,
		EvidenceDueAt: event.EvidenceDueAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.disputes.Create(ctx, d); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			h.log.Debug("Duplicate dispute delivery ignored", "attempt_ref", event.AttemptRef)
			return d, nil
		}
		return nil, fmt.Errorf("failed to persist dispute: %w", err)
	}

	metrics.DisputesOpened.Inc()
	h.log.Info("Dispute opened",
		"id", d.ID, "attempt_ref", d.AttemptRef, "amount", d.AmountCents, "currency", d.Currency)

	// Operator alert is best-effort; the dispute record already landed.
	if h.operator != nil && h.operatorChannel != "" {
		data := map[string]any{
			"alert":      "dispute_opened",
			"dispute_id": d.ID,
			"order_id":   d.OrderID,
			"amount":     d.AmountCents,
			"currency":   d.Currency,
			"reason":     d.Reason,
		}
		if d.EvidenceDueAt != nil {
			data["evidence_due_at"] = d.EvidenceDueAt.Format(time.RFC3339)
		}
		if err := h.operator.Send(ctx, h.operatorChannel, notify.TemplateDisputeOpened, data); err != nil {
			h.log.Warn("Dispute alert dispatch failed", "id", d.ID, "error", err)
		}
	}

	return d, nil
}

// AttachEvidence assembles the evidence bundle from order data and stores it.
func (h *Handler) AttachEvidence(ctx context.Context, id string, order *OrderInfo) error {
	ev := &domain.DisputeEvidence{
		ShippingCarrier:     order.ShippingCarrier,
		TrackingNumber:      order.TrackingNumber,
		ShippedAt:           order.ShippedAt,
		CustomerEmailThread: order.EmailThread,
		OrderNotes:          order.Notes,
	}
	if err := h.disputes.AttachEvidence(ctx, id, ev); err != nil {
		return fmt.Errorf("failed to attach evidence: %w", err)
	}
	h.log.Info("Evidence attached", "id", id, "tracking", order.TrackingNumber)
	return nil
}

// Close records the externally decided outcome.
func (h *Handler) Close(ctx context.Context, id string, won bool) error {
	status := domain.DisputeStatusLost
	if won {
		status = domain.DisputeStatusWon
	}
	if err := h.disputes.UpdateStatus(ctx, id, status); err != nil {
		return fmt.Errorf("failed to close dispute: %w", err)
	}
	h.log.Info("Dispute closed", "id", id, "status", status)
	return nil
}
