package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tradepost/marketplace/internal/domain"
)

// RecordFailure flips a payment from requires_capture to failed. No
// balance moves; the seller was never credited.
func (e *Engine) RecordFailure(ctx context.Context, tx pgx.Tx, payment *domain.Payment, failureMessage string) (*CommandResult, error) {
	flipped, err := e.payments.UpdateStatusIfCurrent(ctx, tx, payment.ID,
		domain.PaymentStatusRequiresCapture, domain.PaymentStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("fail: %w", err)
	}
	if !flipped {
		return &CommandResult{Idempotent: true}, nil
	}

	meta, _ := json.Marshal(map[string]string{
		"stripe_payment_intent": payment.StripePaymentIntent,
		"failure_message":       failureMessage,
	})
	entry, err := e.postFlatEntry(ctx, tx, payment.ID, payment.BuyerProfileID,
		domain.TxPaymentFailed, payment.AmountCents, meta)
	if err != nil {
		return nil, fmt.Errorf("fail post: %w", err)
	}

	failed := *payment
	failed.Status = domain.PaymentStatusFailed
	if err := e.outbox.Insert(ctx, tx, domain.NewPaymentLifecycleEvent(&failed, domain.EventPaymentFailed)); err != nil {
		return nil, fmt.Errorf("fail outbox: %w", err)
	}

	return &CommandResult{Transaction: entry}, nil
}
