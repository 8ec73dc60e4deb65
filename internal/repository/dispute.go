package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tradepost/marketplace/internal/domain"
)

type disputeRepo struct{}

// NewDisputeRepository returns a pgx-backed DisputeRepository.
func NewDisputeRepository() DisputeRepository {
	return &disputeRepo{}
}

const disputeColumns = `id, payment_id, stripe_dispute_id, reason, amount_cents, status,
	       resolved_by, resolved_at, created_at, updated_at`

func (r *disputeRepo) Create(ctx context.Context, db DBTX, d *domain.Dispute) error {
	_, err := db.Exec(ctx, `
		INSERT INTO disputes (id, payment_id, stripe_dispute_id, reason, amount_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.PaymentID, d.StripeDisputeID, d.Reason, d.AmountCents, string(d.Status))
	if err != nil {
		return fmt.Errorf("insert dispute: %w", err)
	}
	return nil
}

func (r *disputeRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Dispute, error) {
	row := db.QueryRow(ctx, `
		SELECT `+disputeColumns+`
		FROM disputes WHERE id = $1`, id)
	return scanDispute(row)
}

func (r *disputeRepo) FindByStripeDisputeID(ctx context.Context, db DBTX, stripeDisputeID string) (*domain.Dispute, error) {
	row := db.QueryRow(ctx, `
		SELECT `+disputeColumns+`
		FROM disputes WHERE stripe_dispute_id = $1`, stripeDisputeID)
	return scanDispute(row)
}

func (r *disputeRepo) UpdateStatus(ctx context.Context, db DBTX, id uuid.UUID, status domain.DisputeStatus, resolvedBy *uuid.UUID) error {
	_, err := db.Exec(ctx, `
		UPDATE disputes SET status = $2, resolved_by = COALESCE($3, resolved_by),
			resolved_at = now(), updated_at = now()
		WHERE id = $1`,
		id, string(status), resolvedBy)
	if err != nil {
		return fmt.Errorf("update dispute status: %w", err)
	}
	return nil
}

func scanDispute(row pgx.Row) (*domain.Dispute, error) {
	var d domain.Dispute
	var status string
	err := row.Scan(
		&d.ID, &d.PaymentID, &d.StripeDisputeID, &d.Reason, &d.AmountCents, &status,
		&d.ResolvedBy, &d.ResolvedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan dispute: %w", err)
	}
	d.Status = domain.DisputeStatus(status)
	return &d, nil
}
