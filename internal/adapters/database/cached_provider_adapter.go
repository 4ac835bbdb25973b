package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/domain/providers"
	"github.com/zatekoja/expertbooking/backend/internal/domain/repositories"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/observability"
)

// CachedProviderAdapter wraps a ProviderRepository with read-through caching.
// Every booking, capture and payout looks the provider up, while profiles
// change only when the provider edits their availability.
type CachedProviderAdapter struct {
	adapter repositories.ProviderRepository
	cache   providers.CacheProvider
}

// NewCachedProviderAdapter creates a new cached provider adapter
func NewCachedProviderAdapter(adapter repositories.ProviderRepository, cache providers.CacheProvider) repositories.ProviderRepository {
	return &CachedProviderAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

// Cache TTLs (in seconds)
const (
	providerByIDTTL   = 300
	providerByUserTTL = 3600 // user to provider mapping never changes
)

func providerCacheKey(id string) string {
	return fmt.Sprintf("provider:%s", id)
}

func providerUserCacheKey(userID string) string {
	return fmt.Sprintf("provider:user:%s", userID)
}

// GetByID retrieves a provider by ID with caching
func (a *CachedProviderAdapter) GetByID(ctx context.Context, id string) (*entities.Provider, error) {
	logger := observability.LoggerFromContext(ctx)
	cacheKey := providerCacheKey(id)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var provider entities.Provider
		if err := json.Unmarshal(cached, &provider); err == nil {
			return &provider, nil
		}
		logger.Warn().Str("key", cacheKey).Msg("discarding unreadable cached provider")
	} else if !errors.Is(err, providers.ErrCacheMiss) {
		logger.Warn().Err(err).Str("key", cacheKey).Msg("provider cache read failed")
	}

	provider, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(provider); err == nil {
		if err := a.cache.Set(ctx, cacheKey, data, providerByIDTTL); err != nil {
			logger.Warn().Err(err).Str("key", cacheKey).Msg("failed to cache provider")
		}
	}

	return provider, nil
}

// GetByUserID resolves the user's provider id through the cache, then loads
// the profile with GetByID
func (a *CachedProviderAdapter) GetByUserID(ctx context.Context, userID string) (*entities.Provider, error) {
	cacheKey := providerUserCacheKey(userID)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil && len(cached) > 0 {
		return a.GetByID(ctx, string(cached))
	}

	provider, err := a.adapter.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := a.cache.Set(ctx, cacheKey, []byte(provider.ID), providerByUserTTL); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", cacheKey).Msg("failed to cache provider mapping")
	}

	return provider, nil
}

// UpdateAvailability writes through and invalidates the cached profile before
// returning, so the next slot query sees the new rule
func (a *CachedProviderAdapter) UpdateAvailability(ctx context.Context, id string, rule entities.AvailabilityRule) error {
	if err := a.adapter.UpdateAvailability(ctx, id, rule); err != nil {
		return err
	}

	if err := a.cache.Delete(ctx, providerCacheKey(id)); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("provider_id", id).Msg("failed to invalidate provider cache")
	}

	return nil
}
