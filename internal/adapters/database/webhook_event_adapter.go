package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/expertbooking/backend/pkg/errors"
)

// WebhookEventAdapter implements the WebhookEventRepository interface
type WebhookEventAdapter struct {
	db *sqlx.DB
}

// NewWebhookEventAdapter creates a new webhook event adapter
func NewWebhookEventAdapter(db *sqlx.DB) repositories.WebhookEventRepository {
	return &WebhookEventAdapter{db: db}
}

// IsProcessed reports whether the delivery was handled successfully before
func (a *WebhookEventAdapter) IsProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM webhook_events WHERE id = $1 AND provider = $2 AND processed = true`
	if err := a.db.GetContext(ctx, &count, query, eventID, provider); err != nil {
		return false, apperrors.NewInternalError("failed to check webhook event", err)
	}
	return count > 0, nil
}

// Store records a delivery; redeliveries of the same id are ignored
func (a *WebhookEventAdapter) Store(ctx context.Context, event *entities.WebhookEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO webhook_events (id, provider, event_type, payload, processed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider, id) DO NOTHING
	`
	_, err := a.db.ExecContext(ctx, query,
		event.ID, event.Provider, event.EventType, []byte(event.Payload), false, event.CreatedAt,
	)
	if err != nil {
		return apperrors.NewInternalError("failed to store webhook event", err)
	}
	return nil
}

// MarkProcessed flags the delivery as handled
func (a *WebhookEventAdapter) MarkProcessed(ctx context.Context, provider, eventID string) error {
	query := `UPDATE webhook_events SET processed = true, processed_at = $1, error_message = NULL WHERE id = $2 AND provider = $3`
	if _, err := a.db.ExecContext(ctx, query, time.Now().UTC(), eventID, provider); err != nil {
		return apperrors.NewInternalError("failed to mark webhook event processed", err)
	}
	return nil
}

// MarkFailed records why the delivery could not be processed
func (a *WebhookEventAdapter) MarkFailed(ctx context.Context, provider, eventID string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}

	query := `UPDATE webhook_events SET error_message = $1 WHERE id = $2 AND provider = $3`
	if _, err := a.db.ExecContext(ctx, query, msg, eventID, provider); err != nil {
		return apperrors.NewInternalError("failed to mark webhook event failed", err)
	}
	return nil
}

// MarkRejected flags the delivery as handled while keeping why it was not applied
func (a *WebhookEventAdapter) MarkRejected(ctx context.Context, provider, eventID string, cause error) error {
	msg := "rejected"
	if cause != nil {
		msg = cause.Error()
	}

	query := `UPDATE webhook_events SET processed = true, processed_at = $1, error_message = $2 WHERE id = $3 AND provider = $4`
	if _, err := a.db.ExecContext(ctx, query, time.Now().UTC(), msg, eventID, provider); err != nil {
		return apperrors.NewInternalError("failed to mark webhook event rejected", err)
	}
	return nil
}
