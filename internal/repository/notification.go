package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tradepost/marketplace/internal/domain"
)

type notificationRepo struct{}

// NewNotificationRepository returns a pgx-backed NotificationRepository.
func NewNotificationRepository() NotificationRepository {
	return &notificationRepo{}
}

func (r *notificationRepo) Insert(ctx context.Context, db DBTX, n *domain.Notification) error {
	payload := n.Payload
	if payload == nil {
		payload = json.RawMessage(`{}`)
	}
	_, err := db.Exec(ctx, `
		INSERT INTO notifications (id, profile_id, type, payload)
		VALUES ($1, $2, $3, $4)`,
		n.ID, n.ProfileID, n.Type, payload)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}
