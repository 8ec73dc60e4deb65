package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tradepost/marketplace/internal/domain"
)

// RecordRefund flips a payment to refunded and, when the seller had
// already been credited, claws the post-fee amount back. The platform
// fee is not returned to the seller.
func (e *Engine) RecordRefund(ctx context.Context, tx pgx.Tx, payment *domain.Payment, amountRefundedCents int64) (*CommandResult, error) {
	sellerWasCredited := payment.Status == domain.PaymentStatusCompleted ||
		payment.Status == domain.PaymentStatusDisputed

	flipped, err := e.payments.MarkRefunded(ctx, tx, payment.ID, amountRefundedCents)
	if err != nil {
		return nil, fmt.Errorf("refund: %w", err)
	}
	if !flipped {
		return &CommandResult{Idempotent: true}, nil
	}

	meta, _ := json.Marshal(map[string]interface{}{
		"stripe_payment_intent": payment.StripePaymentIntent,
		"amount_refunded_cents": amountRefundedCents,
	})

	var entry *domain.Transaction
	var profile *domain.Profile
	if sellerWasCredited {
		if _, err := e.LockSellerForUpdate(ctx, tx, payment.SellerProfileID); err != nil {
			return nil, fmt.Errorf("refund: %w", err)
		}
		entry, profile, err = e.PostEntry(ctx, tx, PostEntryParams{
			PaymentID:         payment.ID,
			ProfileID:         payment.SellerProfileID,
			Type:              domain.TxChargeRefunded,
			AmountCents:       amountRefundedCents,
			BalanceDeltaCents: -payment.SellerNetCents(),
			Metadata:          meta,
		})
	} else {
		entry, err = e.postFlatEntry(ctx, tx, payment.ID, payment.SellerProfileID,
			domain.TxChargeRefunded, amountRefundedCents, meta)
	}
	if err != nil {
		return nil, fmt.Errorf("refund post: %w", err)
	}

	refunded := *payment
	refunded.Status = domain.PaymentStatusRefunded
	refunded.AmountRefundedCents = amountRefundedCents
	if err := e.outbox.Insert(ctx, tx, domain.NewPaymentLifecycleEvent(&refunded, domain.EventPaymentRefunded)); err != nil {
		return nil, fmt.Errorf("refund outbox: %w", err)
	}

	return &CommandResult{Transaction: entry, Profile: profile}, nil
}
