package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tradepost/marketplace/internal/domain"
)

// SettleSale flips a payment from requires_capture to completed and
// credits the seller with the post-fee amount.
// Pattern: CAS status flip → Lock → PostEntry. A failed CAS means a
// concurrent delivery already settled the payment.
func (e *Engine) SettleSale(ctx context.Context, tx pgx.Tx, payment *domain.Payment) (*CommandResult, error) {
	flipped, err := e.payments.UpdateStatusIfCurrent(ctx, tx, payment.ID,
		domain.PaymentStatusRequiresCapture, domain.PaymentStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("settle: %w", err)
	}
	if !flipped {
		return &CommandResult{Idempotent: true}, nil
	}

	if _, err := e.LockSellerForUpdate(ctx, tx, payment.SellerProfileID); err != nil {
		return nil, fmt.Errorf("settle: %w", err)
	}

	meta, _ := json.Marshal(map[string]interface{}{
		"stripe_payment_intent": payment.StripePaymentIntent,
		"platform_fee_cents":    payment.PlatformFeeCents,
	})
	entry, profile, err := e.PostEntry(ctx, tx, PostEntryParams{
		PaymentID:         payment.ID,
		ProfileID:         payment.SellerProfileID,
		Type:              domain.TxSaleSettled,
		AmountCents:       payment.AmountCents,
		BalanceDeltaCents: payment.SellerNetCents(),
		Metadata:          meta,
	})
	if err != nil {
		return nil, fmt.Errorf("settle post: %w", err)
	}

	completed := *payment
	completed.Status = domain.PaymentStatusCompleted
	if err := e.outbox.Insert(ctx, tx, domain.NewPaymentLifecycleEvent(&completed, domain.EventPaymentCompleted)); err != nil {
		return nil, fmt.Errorf("settle outbox: %w", err)
	}

	return &CommandResult{Transaction: entry, Profile: profile}, nil
}
