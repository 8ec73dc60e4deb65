package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tradepost/marketplace/internal/domain"
)

// OpenDispute flips an active payment to disputed and records the
// dispute row in the same transaction. Funds stay where they are until
// an admin refunds or resolves.
func (e *Engine) OpenDispute(ctx context.Context, tx pgx.Tx, payment *domain.Payment, dispute *domain.Dispute) (*CommandResult, error) {
	flipped, err := e.payments.MarkDisputed(ctx, tx, payment.ID)
	if err != nil {
		return nil, fmt.Errorf("open dispute: %w", err)
	}
	if !flipped {
		return &CommandResult{Idempotent: true}, nil
	}

	if err := e.disputes.Create(ctx, tx, dispute); err != nil {
		return nil, fmt.Errorf("open dispute: %w", err)
	}

	disputed := *payment
	disputed.Status = domain.PaymentStatusDisputed
	if err := e.outbox.Insert(ctx, tx, domain.NewPaymentLifecycleEvent(&disputed, domain.EventPaymentDisputed)); err != nil {
		return nil, fmt.Errorf("open dispute outbox: %w", err)
	}

	return &CommandResult{}, nil
}

// ResolveDispute closes a dispute in the seller's favor, returning the
// payment to completed. No balance moves; the settlement stands.
func (e *Engine) ResolveDispute(ctx context.Context, tx pgx.Tx, payment *domain.Payment, dispute *domain.Dispute, resolvedBy uuid.UUID) (*CommandResult, error) {
	flipped, err := e.payments.UpdateStatusIfCurrent(ctx, tx, payment.ID,
		domain.PaymentStatusDisputed, domain.PaymentStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("resolve dispute: %w", err)
	}
	if !flipped {
		return &CommandResult{Idempotent: true}, nil
	}

	if err := e.disputes.UpdateStatus(ctx, tx, dispute.ID, domain.DisputeStatusResolved, &resolvedBy); err != nil {
		return nil, fmt.Errorf("resolve dispute: %w", err)
	}

	resolved := *dispute
	resolved.Status = domain.DisputeStatusResolved
	if err := e.outbox.Insert(ctx, tx, domain.NewDisputeClosedEvent(&resolved)); err != nil {
		return nil, fmt.Errorf("resolve dispute outbox: %w", err)
	}

	return &CommandResult{}, nil
}
