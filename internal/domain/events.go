package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NewTransactionPostedEvent creates the standard ledger event for an entry.
func NewTransactionPostedEvent(tx *Transaction) OutboxDraft {
	payload, _ := json.Marshal(tx)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregatePayment,
		AggregateID:   tx.PaymentID.String(),
		EventType:     EventTransactionPosted,
		PartitionKey:  tx.PaymentID.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}

// NewPaymentLifecycleEvent creates a payment status-change event.
func NewPaymentLifecycleEvent(p *Payment, evtType EventType) OutboxDraft {
	payload, _ := json.Marshal(map[string]interface{}{
		"payment_id":            p.ID.String(),
		"listing_id":            p.ListingID.String(),
		"buyer_profile_id":      p.BuyerProfileID.String(),
		"seller_profile_id":     p.SellerProfileID.String(),
		"amount_cents":          p.AmountCents,
		"platform_fee_cents":    p.PlatformFeeCents,
		"stripe_payment_intent": p.StripePaymentIntent,
		"status":                string(p.Status),
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregatePayment,
		AggregateID:   p.ID.String(),
		EventType:     evtType,
		PartitionKey:  p.ID.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}

// NewDisputeClosedEvent creates a dispute outcome event.
func NewDisputeClosedEvent(d *Dispute) OutboxDraft {
	payload, _ := json.Marshal(map[string]interface{}{
		"dispute_id":        d.ID.String(),
		"payment_id":        d.PaymentID.String(),
		"stripe_dispute_id": d.StripeDisputeID,
		"status":            string(d.Status),
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateDispute,
		AggregateID:   d.ID.String(),
		EventType:     EventDisputeClosed,
		PartitionKey:  d.PaymentID.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}
