package repositories

import (
	"context"

	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
)

// WebhookEventRepository records processor webhook deliveries for idempotency
type WebhookEventRepository interface {
	// IsProcessed reports whether the delivery was already handled successfully
	IsProcessed(ctx context.Context, provider, eventID string) (bool, error)

	// Store records a delivery; storing the same (provider, id) twice is a no-op
	Store(ctx context.Context, event *entities.WebhookEvent) error

	// MarkProcessed flags the delivery as handled
	MarkProcessed(ctx context.Context, provider, eventID string) error

	// MarkFailed records the processing error of a delivery
	MarkFailed(ctx context.Context, provider, eventID string, cause error) error

	// MarkRejected closes a delivery that can never be applied, keeping the cause
	MarkRejected(ctx context.Context, provider, eventID string, cause error) error
}
