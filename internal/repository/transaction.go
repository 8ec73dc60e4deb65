package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tradepost/marketplace/internal/domain"
)

type transactionRepo struct{}

// NewTransactionRepository returns a pgx-backed TransactionRepository.
func NewTransactionRepository() TransactionRepository {
	return &transactionRepo{}
}

func (r *transactionRepo) Insert(ctx context.Context, db DBTX, t *domain.Transaction) error {
	meta := t.Metadata
	if meta == nil {
		meta = json.RawMessage(`{}`)
	}
	_, err := db.Exec(ctx, `
		INSERT INTO transactions (id, payment_id, profile_id, type, amount_cents, balance_after_cents, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.PaymentID, t.ProfileID, string(t.Type), t.AmountCents, t.BalanceAfterCents, meta)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}
