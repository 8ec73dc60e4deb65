package domain

import (
	"time"

	"github.com/google/uuid"
)

// Profile represents a profiles table row. Every buyer and seller has
// one; BalanceCents is the seller's settled (post-fee) balance.
type Profile struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	DisplayName     string     `json:"display_name"`
	BalanceCents    int64      `json:"balance_cents"`
	StripeAccountID *string    `json:"stripe_account_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ListingStatus tracks listing availability.
type ListingStatus string

const (
	ListingStatusActive   ListingStatus = "active"
	ListingStatusSold     ListingStatus = "sold"
	ListingStatusInactive ListingStatus = "inactive"
)

// Listing represents a listings table row.
type Listing struct {
	ID              uuid.UUID     `json:"id"`
	SellerProfileID uuid.UUID     `json:"seller_profile_id"`
	Title           string        `json:"title"`
	PriceCents      int64         `json:"price_cents"`
	Currency        string        `json:"currency"`
	Status          ListingStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
