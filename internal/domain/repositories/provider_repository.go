package repositories

import (
	"context"

	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
)

// ProviderRepository defines the interface for provider data operations
type ProviderRepository interface {
	// GetByID retrieves a provider by ID
	GetByID(ctx context.Context, id string) (*entities.Provider, error)

	// GetByUserID retrieves the provider profile owned by a user
	GetByUserID(ctx context.Context, userID string) (*entities.Provider, error)

	// UpdateAvailability replaces the provider's weekly availability rule
	UpdateAvailability(ctx context.Context, id string, rule entities.AvailabilityRule) error
}
