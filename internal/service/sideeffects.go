package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tradepost/marketplace/internal/domain"
	"github.com/tradepost/marketplace/internal/repository"
)

// SideEffects writes audit log entries and notifications. Both are
// best-effort: a write failure is logged and swallowed, never allowed
// to fail the transition that triggered it.
type SideEffects struct {
	db            repository.DBTX
	audit         repository.AuditLogRepository
	notifications repository.NotificationRepository
	logger        *slog.Logger
}

// NewSideEffects creates the best-effort side-effect writer.
func NewSideEffects(db repository.DBTX, audit repository.AuditLogRepository, notifications repository.NotificationRepository, logger *slog.Logger) *SideEffects {
	return &SideEffects{db: db, audit: audit, notifications: notifications, logger: logger}
}

// RecordAudit appends a payment_audit_logs entry.
func (s *SideEffects) RecordAudit(ctx context.Context, paymentID uuid.UUID, action string, actor domain.ActorType, metadata json.RawMessage) {
	entry := &domain.AuditLog{
		ID:        uuid.New(),
		PaymentID: paymentID,
		Action:    action,
		ActorType: actor,
		Metadata:  metadata,
	}
	if err := s.audit.Insert(ctx, s.db, entry); err != nil {
		s.logger.Error("record audit log", "error", err, "payment_id", paymentID, "action", action)
	}
}

// Notify inserts a notification row for a profile.
func (s *SideEffects) Notify(ctx context.Context, profileID uuid.UUID, notifType string, payload json.RawMessage) {
	n := &domain.Notification{
		ID:        uuid.New(),
		ProfileID: profileID,
		Type:      notifType,
		Payload:   payload,
	}
	if err := s.notifications.Insert(ctx, s.db, n); err != nil {
		s.logger.Error("insert notification", "error", err, "profile_id", profileID, "type", notifType)
	}
}
