package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus tracks the escrow payment lifecycle.
type PaymentStatus string

const (
	PaymentStatusRequiresCapture PaymentStatus = "requires_capture"
	PaymentStatusCompleted       PaymentStatus = "completed"
	PaymentStatusFailed          PaymentStatus = "failed"
	PaymentStatusRefunded        PaymentStatus = "refunded"
	PaymentStatusDisputed        PaymentStatus = "disputed"
)

// Payment represents a payments table row. Amounts are integer cents.
type Payment struct {
	ID                  uuid.UUID       `json:"id"`
	ListingID           uuid.UUID       `json:"listing_id"`
	BuyerProfileID      uuid.UUID       `json:"buyer_profile_id"`
	SellerProfileID     uuid.UUID       `json:"seller_profile_id"`
	MilestoneID         *uuid.UUID      `json:"milestone_id,omitempty"`
	AmountCents         int64           `json:"amount_cents"`
	PlatformFeeCents    int64           `json:"platform_fee_cents"`
	AmountRefundedCents int64           `json:"amount_refunded_cents"`
	Currency            string          `json:"currency"`
	Status              PaymentStatus   `json:"status"`
	StripePaymentIntent string          `json:"stripe_payment_intent"`
	DisputedAt          *time.Time      `json:"disputed_at,omitempty"`
	Metadata            json.RawMessage `json:"metadata"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// SellerNetCents is the amount credited to the seller after the platform fee.
func (p *Payment) SellerNetCents() int64 {
	return p.AmountCents - p.PlatformFeeCents
}

// ComputeFeeCents calculates the platform fee in cents for the given
// amount at the configured basis points (500 bps = 5%).
func ComputeFeeCents(amountCents, feeBps int64) int64 {
	return amountCents * feeBps / 10000
}

// ValidatePositiveAmount rejects zero and negative amounts.
func ValidatePositiveAmount(amountCents int64) error {
	if amountCents <= 0 {
		return ErrValidation("amount must be positive")
	}
	return nil
}

// TransactionType enumerates ledger transaction types.
type TransactionType string

const (
	TxSaleSettled     TransactionType = "sale_settled"
	TxPaymentFailed   TransactionType = "payment_failed"
	TxChargeRefunded  TransactionType = "charge_refunded"
	TxTransferCreated TransactionType = "transfer_created"
	TxTransferFailed  TransactionType = "transfer_failed"
)

// Transaction represents a transactions row (append-only ledger entry).
// BalanceAfterCents is nil for entries that do not move a balance.
type Transaction struct {
	ID                uuid.UUID       `json:"id"`
	PaymentID         uuid.UUID       `json:"payment_id"`
	ProfileID         uuid.UUID       `json:"profile_id"`
	Type              TransactionType `json:"type"`
	AmountCents       int64           `json:"amount_cents"`
	BalanceAfterCents *int64          `json:"balance_after_cents,omitempty"`
	Metadata          json.RawMessage `json:"metadata"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ActorType identifies who caused an audit log entry.
type ActorType string

const (
	ActorSystem ActorType = "system"
	ActorBuyer  ActorType = "buyer"
	ActorAdmin  ActorType = "admin"
)

// Audit actions recorded in payment_audit_logs.
const (
	AuditIntentAttempted  = "payment_intent_attempted"
	AuditPaymentCompleted = "payment_completed"
	AuditPaymentFailed    = "payment_failed"
	AuditChargeRefunded   = "charge_refunded"
	AuditTransferCreated  = "transfer_created"
	AuditTransferFailed   = "transfer_failed"
	AuditDisputeOpened    = "dispute_opened"
	AuditDisputeClosed    = "dispute_closed"
	AuditDisputeRefunded  = "dispute_refunded"
	AuditDisputeResolved  = "dispute_resolved"
)

// AuditLog represents a payment_audit_logs row. PaymentID is recorded
// even for intent attempts where the payment row does not exist yet.
type AuditLog struct {
	ID        uuid.UUID       `json:"id"`
	PaymentID uuid.UUID       `json:"payment_id"`
	Action    string          `json:"action"`
	ActorType ActorType       `json:"actor_type"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

// Notification represents a notifications row delivered to a profile.
type Notification struct {
	ID        uuid.UUID       `json:"id"`
	ProfileID uuid.UUID       `json:"profile_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	ReadAt    *time.Time      `json:"read_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
