package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/domain/repositories"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/expertbooking/backend/pkg/errors"
)

// ProviderAdapter implements the ProviderRepository interface
type ProviderAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewProviderAdapter creates a new provider adapter
func NewProviderAdapter(client *postgres.Client) repositories.ProviderRepository {
	return &ProviderAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a provider by ID
func (a *ProviderAdapter) GetByID(ctx context.Context, id string) (*entities.Provider, error) {
	return a.getOne(ctx, goqu.Ex{"id": id}, fmt.Sprintf("provider with id %s not found", id))
}

// GetByUserID retrieves the provider profile of a user
func (a *ProviderAdapter) GetByUserID(ctx context.Context, userID string) (*entities.Provider, error) {
	return a.getOne(ctx, goqu.Ex{"user_id": userID}, fmt.Sprintf("no provider profile for user %s", userID))
}

func (a *ProviderAdapter) getOne(ctx context.Context, where goqu.Ex, notFound string) (*entities.Provider, error) {
	query, args, err := a.db.Select(
		"id", "user_id", "name", "email", "is_available",
		"available_days", "time_slots", "session_fee", "currency", "timezone",
		"created_at", "updated_at",
	).From("providers").
		Where(where).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	provider := &entities.Provider{}
	var timezone sql.NullString
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&provider.ID,
		&provider.UserID,
		&provider.Name,
		&provider.Email,
		&provider.IsAvailable,
		pq.Array(&provider.AvailableDays),
		pq.Array(&provider.TimeSlots),
		&provider.SessionFee,
		&provider.Currency,
		&timezone,
		&provider.CreatedAt,
		&provider.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get provider", err)
	}
	provider.Timezone = timezone.String

	return provider, nil
}

// UpdateAvailability replaces the provider's weekly rule
func (a *ProviderAdapter) UpdateAvailability(ctx context.Context, id string, rule entities.AvailabilityRule) error {
	query, args, err := a.db.Update("providers").
		Set(goqu.Record{
			"is_available":   rule.IsAvailable,
			"available_days": pq.Array(rule.Weekdays),
			"time_slots":     pq.Array(rule.TimeLabels),
			"updated_at":     time.Now().UTC(),
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update availability", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("provider with id %s not found", id))
	}

	return nil
}
