package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tradepost/marketplace/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// ProfileRepository provides access to profiles.
type ProfileRepository interface {
	// FindByUserID returns the profile owned by an authenticated user.
	FindByUserID(ctx context.Context, db DBTX, userID uuid.UUID) (*domain.Profile, error)

	// LockForUpdate acquires a row-level lock (SELECT FOR UPDATE) and returns the profile.
	LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Profile, error)

	// UpdateBalance atomically applies a signed delta using server-side arithmetic.
	UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, deltaCents int64) (*domain.Profile, error)
}

// ListingRepository provides access to listings.
type ListingRepository interface {
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Listing, error)

	// LockForUpdate serializes writers that must observe a stable view of
	// the listing's milestones, such as the pending-amount cap check.
	LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Listing, error)
}

// PaymentRepository provides access to payments. stripe_payment_intent
// carries a unique index and is the lookup anchor for webhook events.
type PaymentRepository interface {
	Create(ctx context.Context, db DBTX, payment *domain.Payment) error
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Payment, error)
	FindByStripeIntent(ctx context.Context, db DBTX, intentID string) (*domain.Payment, error)
	ListByBuyer(ctx context.Context, db DBTX, buyerProfileID uuid.UUID, limit int) ([]domain.Payment, error)

	// UpdateStatusIfCurrent is a compare-and-swap on status. Returns false
	// when the row was not in the expected state.
	UpdateStatusIfCurrent(ctx context.Context, db DBTX, id uuid.UUID, from, to domain.PaymentStatus) (bool, error)

	// MarkRefunded flips to refunded and records the refunded amount.
	MarkRefunded(ctx context.Context, db DBTX, id uuid.UUID, amountRefundedCents int64) (bool, error)

	// MarkDisputed flips an active payment to disputed and stamps disputed_at.
	MarkDisputed(ctx context.Context, db DBTX, id uuid.UUID) (bool, error)
}

// MilestoneRepository provides access to milestones.
type MilestoneRepository interface {
	Create(ctx context.Context, db DBTX, milestone *domain.Milestone) error
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Milestone, error)

	// SumPendingByListing returns the total pending milestone amount for a listing.
	SumPendingByListing(ctx context.Context, db DBTX, listingID uuid.UUID) (int64, error)

	UpdateStatus(ctx context.Context, db DBTX, id uuid.UUID, status domain.MilestoneStatus) error
}

// WebhookEventRepository provides the deduplication gate over webhook_events.
type WebhookEventRepository interface {
	// Admit inserts the event id; a conflicting insert means the event was
	// already delivered. Returns true when the event is fresh.
	Admit(ctx context.Context, db DBTX, id, eventType string, payload json.RawMessage) (bool, error)

	// Finalize records the processing outcome on the admitted row.
	Finalize(ctx context.Context, db DBTX, id string, result string, processingError *string) error
}

// DisputeRepository provides access to disputes.
type DisputeRepository interface {
	Create(ctx context.Context, db DBTX, dispute *domain.Dispute) error
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Dispute, error)
	FindByStripeDisputeID(ctx context.Context, db DBTX, stripeDisputeID string) (*domain.Dispute, error)
	UpdateStatus(ctx context.Context, db DBTX, id uuid.UUID, status domain.DisputeStatus, resolvedBy *uuid.UUID) error
}

// TransactionRepository provides access to the append-only transactions table.
type TransactionRepository interface {
	Insert(ctx context.Context, db DBTX, tx *domain.Transaction) error
}

// AuditLogRepository provides access to payment_audit_logs.
type AuditLogRepository interface {
	Insert(ctx context.Context, db DBTX, entry *domain.AuditLog) error
}

// NotificationRepository provides access to notifications.
type NotificationRepository interface {
	Insert(ctx context.Context, db DBTX, n *domain.Notification) error
}

// OutboxRow is an event_outbox row with its sequence id.
type OutboxRow struct {
	SeqID int64
	domain.OutboxDraft
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event (within the same transaction as the
	// state change it describes).
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublishedRows returns unpublished events for the publisher.
	FetchUnpublishedRows(ctx context.Context, db DBTX, limit int) ([]OutboxRow, error)

	// MarkPublished stamps events as published.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error
}
