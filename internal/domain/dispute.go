package domain

import (
	"time"

	"github.com/google/uuid"
)

// DisputeStatus tracks a chargeback dispute from open to outcome.
type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "open"
	DisputeStatusResolved DisputeStatus = "resolved"
	DisputeStatusWon      DisputeStatus = "won"
	DisputeStatusLost     DisputeStatus = "lost"
)

// Dispute represents a disputes table row.
type Dispute struct {
	ID              uuid.UUID     `json:"id"`
	PaymentID       uuid.UUID     `json:"payment_id"`
	StripeDisputeID string        `json:"stripe_dispute_id"`
	Reason          string        `json:"reason"`
	AmountCents     int64         `json:"amount_cents"`
	Status          DisputeStatus `json:"status"`
	ResolvedBy      *uuid.UUID    `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time    `json:"resolved_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
