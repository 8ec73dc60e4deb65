package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tradepost/marketplace/internal/domain"
)

type profileRepo struct{}

// NewProfileRepository returns a pgx-backed ProfileRepository.
func NewProfileRepository() ProfileRepository {
	return &profileRepo{}
}

const profileColumns = `id, user_id, display_name, balance_cents, stripe_account_id, created_at, updated_at`

func (r *profileRepo) FindByUserID(ctx context.Context, db DBTX, userID uuid.UUID) (*domain.Profile, error) {
	row := db.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM profiles WHERE user_id = $1`, userID)
	return scanProfile(row)
}

func (r *profileRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Profile, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM profiles WHERE id = $1 FOR UPDATE`, id)
	return scanProfile(row)
}

// UpdateBalance applies the delta server-side so concurrent settlements
// never read-modify-write a stale balance.
func (r *profileRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, deltaCents int64) (*domain.Profile, error) {
	row := tx.QueryRow(ctx, `
		UPDATE profiles SET balance_cents = balance_cents + $2, updated_at = now()
		WHERE id = $1
		RETURNING `+profileColumns, id, deltaCents)
	return scanProfile(row)
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(&p.ID, &p.UserID, &p.DisplayName, &p.BalanceCents, &p.StripeAccountID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	return &p, nil
}
