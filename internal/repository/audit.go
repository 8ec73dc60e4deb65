package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tradepost/marketplace/internal/domain"
)

type auditLogRepo struct{}

// NewAuditLogRepository returns a pgx-backed AuditLogRepository.
func NewAuditLogRepository() AuditLogRepository {
	return &auditLogRepo{}
}

func (r *auditLogRepo) Insert(ctx context.Context, db DBTX, entry *domain.AuditLog) error {
	meta := entry.Metadata
	if meta == nil {
		meta = json.RawMessage(`{}`)
	}
	_, err := db.Exec(ctx, `
		INSERT INTO payment_audit_logs (id, payment_id, action, actor_type, metadata)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.PaymentID, entry.Action, string(entry.ActorType), meta)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
