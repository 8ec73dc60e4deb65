package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tradepost/marketplace/internal/domain"
	"github.com/tradepost/marketplace/internal/repository"
)

// Engine provides the foundational ledger operations:
//  1. LockSellerForUpdate — row-level pessimistic lock
//  2. PostEntry — atomic balance update + append-only insert + outbox event
//
// Every payment transition command delegates to these primitives inside
// a caller-owned pgx.Tx.
type Engine struct {
	profiles     repository.ProfileRepository
	payments     repository.PaymentRepository
	transactions repository.TransactionRepository
	disputes     repository.DisputeRepository
	outbox       repository.OutboxRepository
}

// NewEngine creates a ledger engine with the given repositories.
func NewEngine(
	profiles repository.ProfileRepository,
	payments repository.PaymentRepository,
	transactions repository.TransactionRepository,
	disputes repository.DisputeRepository,
	outbox repository.OutboxRepository,
) *Engine {
	return &Engine{
		profiles:     profiles,
		payments:     payments,
		transactions: transactions,
		disputes:     disputes,
		outbox:       outbox,
	}
}

// CommandResult is the outcome of a transition command. Idempotent is
// set when the payment was already past the expected state and nothing
// was written.
type CommandResult struct {
	Transaction *domain.Transaction
	Profile     *domain.Profile
	Idempotent  bool
}

// LockSellerForUpdate acquires a row-level lock and returns the seller profile.
// Must be called within a transaction.
func (e *Engine) LockSellerForUpdate(ctx context.Context, tx pgx.Tx, profileID uuid.UUID) (*domain.Profile, error) {
	profile, err := e.profiles.LockForUpdate(ctx, tx, profileID)
	if err != nil {
		return nil, fmt.Errorf("lock profile: %w", err)
	}
	if profile == nil {
		return nil, domain.ErrNotFound("profile", profileID.String())
	}
	return profile, nil
}

// PostEntryParams describes one balance-moving ledger entry.
type PostEntryParams struct {
	PaymentID         uuid.UUID
	ProfileID         uuid.UUID
	Type              domain.TransactionType
	AmountCents       int64
	BalanceDeltaCents int64
	Metadata          json.RawMessage
}

// PostEntry atomically updates the profile balance and inserts a ledger
// entry with the post-update balance snapshot, plus the outbox event.
// All 3 steps run within the caller's transaction.
func (e *Engine) PostEntry(ctx context.Context, tx pgx.Tx, params PostEntryParams) (*domain.Transaction, *domain.Profile, error) {
	updated, err := e.profiles.UpdateBalance(ctx, tx, params.ProfileID, params.BalanceDeltaCents)
	if err != nil {
		return nil, nil, fmt.Errorf("update balance: %w", err)
	}
	if updated == nil {
		return nil, nil, domain.ErrNotFound("profile", params.ProfileID.String())
	}

	balanceAfter := updated.BalanceCents
	entry := &domain.Transaction{
		ID:                uuid.New(),
		PaymentID:         params.PaymentID,
		ProfileID:         params.ProfileID,
		Type:              params.Type,
		AmountCents:       params.AmountCents,
		BalanceAfterCents: &balanceAfter,
		Metadata:          ensureJSON(params.Metadata),
	}
	if err := e.transactions.Insert(ctx, tx, entry); err != nil {
		return nil, nil, fmt.Errorf("insert transaction: %w", err)
	}

	if err := e.outbox.Insert(ctx, tx, domain.NewTransactionPostedEvent(entry)); err != nil {
		return nil, nil, fmt.Errorf("insert outbox event: %w", err)
	}

	return entry, updated, nil
}

// postFlatEntry inserts a ledger entry that does not move a balance.
func (e *Engine) postFlatEntry(ctx context.Context, tx pgx.Tx, paymentID, profileID uuid.UUID, txType domain.TransactionType, amountCents int64, metadata json.RawMessage) (*domain.Transaction, error) {
	entry := &domain.Transaction{
		ID:          uuid.New(),
		PaymentID:   paymentID,
		ProfileID:   profileID,
		Type:        txType,
		AmountCents: amountCents,
		Metadata:    ensureJSON(metadata),
	}
	if err := e.transactions.Insert(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	if err := e.outbox.Insert(ctx, tx, domain.NewTransactionPostedEvent(entry)); err != nil {
		return nil, fmt.Errorf("insert outbox event: %w", err)
	}
	return entry, nil
}

func ensureJSON(data json.RawMessage) json.RawMessage {
	if data == nil {
		return json.RawMessage(`{}`)
	}
	return data
}
