package repository

import (
	"context"
	"encoding/json"
	"fmt"
)

type webhookEventRepo struct{}

// NewWebhookEventRepository returns a pgx-backed WebhookEventRepository.
func NewWebhookEventRepository() WebhookEventRepository {
	return &webhookEventRepo{}
}

// Admit relies on the primary key: a duplicate delivery inserts zero rows.
func (r *webhookEventRepo) Admit(ctx context.Context, db DBTX, id, eventType string, payload json.RawMessage) (bool, error) {
	if payload == nil {
		payload = json.RawMessage(`{}`)
	}
	tag, err := db.Exec(ctx, `
		INSERT INTO webhook_events (id, event_type, payload, processed_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO NOTHING`,
		id, eventType, payload)
	if err != nil {
		return false, fmt.Errorf("admit webhook event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *webhookEventRepo) Finalize(ctx context.Context, db DBTX, id string, result string, processingError *string) error {
	_, err := db.Exec(ctx, `
		UPDATE webhook_events SET processing_result = $2, processing_error = $3
		WHERE id = $1`,
		id, result, processingError)
	if err != nil {
		return fmt.Errorf("finalize webhook event: %w", err)
	}
	return nil
}
