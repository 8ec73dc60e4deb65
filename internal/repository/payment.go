package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tradepost/marketplace/internal/domain"
)

type paymentRepo struct{}

// NewPaymentRepository returns a pgx-backed PaymentRepository.
func NewPaymentRepository() PaymentRepository {
	return &paymentRepo{}
}

const paymentColumns = `id, listing_id, buyer_profile_id, seller_profile_id, milestone_id,
	       amount_cents, platform_fee_cents, amount_refunded_cents, currency, status,
	       stripe_payment_intent, disputed_at, metadata, created_at, updated_at`

func (r *paymentRepo) Create(ctx context.Context, db DBTX, p *domain.Payment) error {
	meta := p.Metadata
	if meta == nil {
		meta = json.RawMessage(`{}`)
	}
	_, err := db.Exec(ctx, `
		INSERT INTO payments (id, listing_id, buyer_profile_id, seller_profile_id, milestone_id,
			amount_cents, platform_fee_cents, currency, status, stripe_payment_intent, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.ListingID, p.BuyerProfileID, p.SellerProfileID, p.MilestoneID,
		p.AmountCents, p.PlatformFeeCents, p.Currency, string(p.Status),
		p.StripePaymentIntent, meta,
	)
	return err
}

func (r *paymentRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Payment, error) {
	row := db.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

func (r *paymentRepo) FindByStripeIntent(ctx context.Context, db DBTX, intentID string) (*domain.Payment, error) {
	row := db.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments WHERE stripe_payment_intent = $1`, intentID)
	return scanPayment(row)
}

func (r *paymentRepo) ListByBuyer(ctx context.Context, db DBTX, buyerProfileID uuid.UUID, limit int) ([]domain.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := db.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments WHERE buyer_profile_id = $1
		ORDER BY created_at DESC LIMIT $2`, buyerProfileID, limit)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPaymentRow(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (r *paymentRepo) UpdateStatusIfCurrent(ctx context.Context, db DBTX, id uuid.UUID, from, to domain.PaymentStatus) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE payments SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("update payment status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentRepo) MarkRefunded(ctx context.Context, db DBTX, id uuid.UUID, amountRefundedCents int64) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE payments SET status = 'refunded', amount_refunded_cents = $2, updated_at = now()
		WHERE id = $1 AND status IN ('requires_capture', 'completed', 'disputed')`,
		id, amountRefundedCents)
	if err != nil {
		return false, fmt.Errorf("mark payment refunded: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentRepo) MarkDisputed(ctx context.Context, db DBTX, id uuid.UUID) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE payments SET status = 'disputed', disputed_at = now(), updated_at = now()
		WHERE id = $1 AND status IN ('requires_capture', 'completed')`,
		id)
	if err != nil {
		return false, fmt.Errorf("mark payment disputed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var status string
	err := row.Scan(
		&p.ID, &p.ListingID, &p.BuyerProfileID, &p.SellerProfileID, &p.MilestoneID,
		&p.AmountCents, &p.PlatformFeeCents, &p.AmountRefundedCents, &p.Currency, &status,
		&p.StripePaymentIntent, &p.DisputedAt, &p.Metadata, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	p.Status = domain.PaymentStatus(status)
	return &p, nil
}

func scanPaymentRow(rows pgx.Rows) (*domain.Payment, error) {
	var p domain.Payment
	var status string
	err := rows.Scan(
		&p.ID, &p.ListingID, &p.BuyerProfileID, &p.SellerProfileID, &p.MilestoneID,
		&p.AmountCents, &p.PlatformFeeCents, &p.AmountRefundedCents, &p.Currency, &status,
		&p.StripePaymentIntent, &p.DisputedAt, &p.Metadata, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan payment row: %w", err)
	}
	p.Status = domain.PaymentStatus(status)
	return &p, nil
}
