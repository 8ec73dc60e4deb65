package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tradepost/marketplace/internal/domain"
)

type milestoneRepo struct{}

// NewMilestoneRepository returns a pgx-backed MilestoneRepository.
func NewMilestoneRepository() MilestoneRepository {
	return &milestoneRepo{}
}

func (r *milestoneRepo) Create(ctx context.Context, db DBTX, m *domain.Milestone) error {
	_, err := db.Exec(ctx, `
		INSERT INTO milestones (id, listing_id, buyer_profile_id, title, amount_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.ListingID, m.BuyerProfileID, m.Title, m.AmountCents, string(m.Status))
	if err != nil {
		return fmt.Errorf("insert milestone: %w", err)
	}
	return nil
}

func (r *milestoneRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Milestone, error) {
	row := db.QueryRow(ctx, `
		SELECT id, listing_id, buyer_profile_id, title, amount_cents, status, created_at, updated_at
		FROM milestones WHERE id = $1`, id)

	var m domain.Milestone
	var status string
	err := row.Scan(&m.ID, &m.ListingID, &m.BuyerProfileID, &m.Title, &m.AmountCents, &status, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan milestone: %w", err)
	}
	m.Status = domain.MilestoneStatus(status)
	return &m, nil
}

func (r *milestoneRepo) SumPendingByListing(ctx context.Context, db DBTX, listingID uuid.UUID) (int64, error) {
	row := db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM milestones WHERE listing_id = $1 AND status = 'pending'`, listingID)

	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum pending milestones: %w", err)
	}
	return sum, nil
}

func (r *milestoneRepo) UpdateStatus(ctx context.Context, db DBTX, id uuid.UUID, status domain.MilestoneStatus) error {
	_, err := db.Exec(ctx, `
		UPDATE milestones SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("update milestone status: %w", err)
	}
	return nil
}
