package domain

import (
	"time"

	"github.com/google/uuid"
)

// MilestoneStatus tracks the partial-payment lifecycle.
type MilestoneStatus string

const (
	MilestoneStatusPending   MilestoneStatus = "pending"
	MilestoneStatusCompleted MilestoneStatus = "completed"
	MilestoneStatusFailed    MilestoneStatus = "failed"
)

// Milestone represents a milestones table row: a partial payment
// against a listing. The sum of pending milestone amounts for a
// listing may never exceed the listing price.
type Milestone struct {
	ID             uuid.UUID       `json:"id"`
	ListingID      uuid.UUID       `json:"listing_id"`
	BuyerProfileID uuid.UUID       `json:"buyer_profile_id"`
	Title          string          `json:"title"`
	AmountCents    int64           `json:"amount_cents"`
	Status         MilestoneStatus `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
