package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tradepost/marketplace/internal/domain"
)

type listingRepo struct{}

// NewListingRepository returns a pgx-backed ListingRepository.
func NewListingRepository() ListingRepository {
	return &listingRepo{}
}

const listingColumns = `id, seller_profile_id, title, price_cents, currency, status, created_at, updated_at`

func (r *listingRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Listing, error) {
	row := db.QueryRow(ctx, `
		SELECT `+listingColumns+`
		FROM listings WHERE id = $1`, id)
	return scanListing(row)
}

// LockForUpdate acquires a row lock on the listing so concurrent
// milestone creations against it serialize.
func (r *listingRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Listing, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+listingColumns+`
		FROM listings WHERE id = $1 FOR UPDATE`, id)
	return scanListing(row)
}

func scanListing(row pgx.Row) (*domain.Listing, error) {
	var l domain.Listing
	var status string
	err := row.Scan(&l.ID, &l.SellerProfileID, &l.Title, &l.PriceCents, &l.Currency, &status, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan listing: %w", err)
	}
	l.Status = domain.ListingStatus(status)
	return &l, nil
}
