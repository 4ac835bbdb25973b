package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/expertbooking/backend/internal/adapters/cache"
	"github.com/zatekoja/expertbooking/backend/internal/adapters/database"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/expertbooking/backend/pkg/errors"
)

type MockProviderRepository struct {
	mock.Mock
}

func (m *MockProviderRepository) GetByID(ctx context.Context, id string) (*entities.Provider, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Provider), args.Error(1)
}

func (m *MockProviderRepository) GetByUserID(ctx context.Context, userID string) (*entities.Provider, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Provider), args.Error(1)
}

func (m *MockProviderRepository) UpdateAvailability(ctx context.Context, id string, rule entities.AvailabilityRule) error {
	args := m.Called(ctx, id, rule)
	return args.Error(0)
}

func cachedProvider() *entities.Provider {
	return &entities.Provider{
		ID: "prov-1", UserID: "user-prov", Name: "Dr. Rao", IsAvailable: true,
		AvailableDays: []string{"Monday"}, TimeSlots: []string{"09:00-10:00"},
		SessionFee: 50000, Currency: "INR",
	}
}

func TestCachedProviderAdapter(t *testing.T) {
	ctx := context.Background()

	t.Run("second read is served from cache", func(t *testing.T) {
		inner := new(MockProviderRepository)
		inner.On("GetByID", mock.Anything, "prov-1").Return(cachedProvider(), nil).Once()
		repo := database.NewCachedProviderAdapter(inner, cache.NewMemoryAdapter())

		first, err := repo.GetByID(ctx, "prov-1")
		require.NoError(t, err)
		second, err := repo.GetByID(ctx, "prov-1")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		inner.AssertNumberOfCalls(t, "GetByID", 1)
	})

	t.Run("user lookup reuses the profile cache", func(t *testing.T) {
		inner := new(MockProviderRepository)
		inner.On("GetByUserID", mock.Anything, "user-prov").Return(cachedProvider(), nil).Once()
		inner.On("GetByID", mock.Anything, "prov-1").Return(cachedProvider(), nil).Once()
		repo := database.NewCachedProviderAdapter(inner, cache.NewMemoryAdapter())

		_, err := repo.GetByUserID(ctx, "user-prov")
		require.NoError(t, err)
		provider, err := repo.GetByUserID(ctx, "user-prov")
		require.NoError(t, err)

		assert.Equal(t, "prov-1", provider.ID)
		inner.AssertExpectations(t)
	})

	t.Run("availability update invalidates", func(t *testing.T) {
		inner := new(MockProviderRepository)
		rule := entities.AvailabilityRule{IsAvailable: false}
		updated := cachedProvider()
		updated.IsAvailable = false
		inner.On("GetByID", mock.Anything, "prov-1").Return(cachedProvider(), nil).Once()
		inner.On("UpdateAvailability", mock.Anything, "prov-1", rule).Return(nil)
		inner.On("GetByID", mock.Anything, "prov-1").Return(updated, nil).Once()
		repo := database.NewCachedProviderAdapter(inner, cache.NewMemoryAdapter())

		_, err := repo.GetByID(ctx, "prov-1")
		require.NoError(t, err)
		require.NoError(t, repo.UpdateAvailability(ctx, "prov-1", rule))

		provider, err := repo.GetByID(ctx, "prov-1")
		require.NoError(t, err)
		assert.False(t, provider.IsAvailable)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		inner := new(MockProviderRepository)
		inner.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.NewNotFoundError("provider not found")).Twice()
		repo := database.NewCachedProviderAdapter(inner, cache.NewMemoryAdapter())

		_, err := repo.GetByID(ctx, "missing")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
		_, err = repo.GetByID(ctx, "missing")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
		inner.AssertExpectations(t)
	})
}
