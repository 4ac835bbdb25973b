package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/domain/providers"
	"github.com/zatekoja/expertbooking/backend/internal/domain/repositories"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/expertbooking/backend/pkg/errors"
)

// AvailabilityService answers slot queries for a provider. Results are cached
// briefly per provider and date; every reserve or cancel drops the entries.
type AvailabilityService struct {
	providerRepo    repositories.ProviderRepository
	appointmentRepo repositories.AppointmentRepository
	cache           providers.CacheProvider
	cacheTTL        time.Duration
	defaultLoc      *time.Location
	windowDays      int
	metrics         *observability.Metrics
	now             func() time.Time
}

// AvailabilityConfig holds the tunables of the availability service
type AvailabilityConfig struct {
	DefaultLocation *time.Location
	WindowDays      int
	CacheTTL        time.Duration
}

// NewAvailabilityService creates a new availability service. cache may be nil.
func NewAvailabilityService(
	providerRepo repositories.ProviderRepository,
	appointmentRepo repositories.AppointmentRepository,
	cache providers.CacheProvider,
	metrics *observability.Metrics,
	cfg AvailabilityConfig,
) *AvailabilityService {
	if cfg.DefaultLocation == nil {
		cfg.DefaultLocation = time.UTC
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 30
	}
	return &AvailabilityService{
		providerRepo:    providerRepo,
		appointmentRepo: appointmentRepo,
		cache:           cache,
		cacheTTL:        cfg.CacheTTL,
		defaultLoc:      cfg.DefaultLocation,
		windowDays:      cfg.WindowDays,
		metrics:         metrics,
		now:             time.Now,
	}
}

// GetAvailableSlots lists free slots for one date, or for the rolling window
// starting today when date is empty
func (s *AvailabilityService) GetAvailableSlots(ctx context.Context, providerID, date string) ([]entities.Slot, error) {
	provider, err := s.providerRepo.GetByID(ctx, providerID)
	if err != nil {
		return nil, err
	}

	loc := provider.Location(s.defaultLoc)
	now := s.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	window := RollingWindow(now, s.windowDays)
	key := rollingCacheKey(providerID, today)
	if date != "" {
		day, err := time.ParseInLocation(time.DateOnly, date, loc)
		if err != nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("date %q must be in YYYY-MM-DD format", date))
		}
		if day.Before(today) {
			return []entities.Slot{}, nil
		}
		window = SingleDay(day, now)
		key = dateCacheKey(providerID, date)
	}

	if slots, ok := s.cached(ctx, key); ok {
		return slots, nil
	}

	y, m, d := window.Start.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 0, window.Days-1)

	booked, err := s.appointmentRepo.ListActiveByProvider(ctx, providerID, from.Format(time.DateOnly), to.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}

	slots := CalculateAvailability(provider.Rule(), booked, window, loc)
	s.store(ctx, key, slots)

	return slots, nil
}

// AvailabilityInput is a replacement weekly rule
type AvailabilityInput struct {
	IsAvailable   bool     `json:"is_available"`
	AvailableDays []string `json:"available_days" validate:"dive,required"`
	TimeSlots     []string `json:"time_slots" validate:"dive,timelabel"`
}

// UpdateAvailability replaces the rule of the requester's own provider profile
func (s *AvailabilityService) UpdateAvailability(ctx context.Context, providerID, requesterID string, input AvailabilityInput) (*entities.Provider, error) {
	provider, err := s.providerRepo.GetByID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if provider.UserID != requesterID {
		return nil, apperrors.NewForbiddenError("only the provider can change their availability")
	}

	rule := entities.AvailabilityRule{IsAvailable: input.IsAvailable}
	for _, day := range input.AvailableDays {
		weekday, ok := parseWeekday(day)
		if !ok {
			return nil, apperrors.NewValidationError(fmt.Sprintf("%q is not a weekday", day))
		}
		rule.Weekdays = append(rule.Weekdays, strings.ToUpper(weekday.String()))
	}
	for _, raw := range input.TimeSlots {
		label, err := entities.ParseTimeLabel(raw)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
		rule.TimeLabels = append(rule.TimeLabels, label.Raw)
	}

	if err := s.providerRepo.UpdateAvailability(ctx, providerID, rule); err != nil {
		return nil, err
	}
	s.InvalidateProvider(ctx, providerID, provider.Location(s.defaultLoc), "")

	provider.IsAvailable = rule.IsAvailable
	provider.AvailableDays = rule.Weekdays
	provider.TimeSlots = rule.TimeLabels
	return provider, nil
}

// InvalidateProvider drops cached slots for a date and for the rolling window
// starting on the provider's current local day. A nil loc means the default zone.
func (s *AvailabilityService) InvalidateProvider(ctx context.Context, providerID string, loc *time.Location, date string) {
	if s == nil || s.cache == nil {
		return
	}
	if loc == nil {
		loc = s.defaultLoc
	}

	keys := []string{rollingCacheKey(providerID, s.now().In(loc))}
	if date != "" {
		keys = append(keys, dateCacheKey(providerID, date))
	}

	if err := s.cache.Delete(ctx, keys...); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("provider_id", providerID).Msg("failed to invalidate availability cache")
	}
}

func (s *AvailabilityService) cached(ctx context.Context, key string) ([]entities.Slot, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil, false
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("availability cache read failed")
		}
		observability.RecordCacheMiss(ctx, s.metrics, key)
		return nil, false
	}

	var slots []entities.Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		observability.RecordCacheMiss(ctx, s.metrics, key)
		return nil, false
	}

	observability.RecordCacheHit(ctx, s.metrics, key)
	return slots, true
}

func (s *AvailabilityService) store(ctx context.Context, key string, slots []entities.Slot) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}

	data, err := json.Marshal(slots)
	if err != nil {
		return
	}
	seconds := int(s.cacheTTL / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	if err := s.cache.Set(ctx, key, data, seconds); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("availability cache write failed")
	}
}

func dateCacheKey(providerID, date string) string {
	return fmt.Sprintf("availability:%s:%s", providerID, date)
}

// providerLocation is the provider's zone, or nil when it has none
func providerLocation(provider *entities.Provider) *time.Location {
	if provider == nil {
		return nil
	}
	return provider.Location(nil)
}

func rollingCacheKey(providerID string, day time.Time) string {
	return fmt.Sprintf("availability:%s:rolling:%s", providerID, day.Format(time.DateOnly))
}

func parseWeekday(raw string) (time.Weekday, bool) {
	name := strings.TrimSpace(raw)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(name, d.String()) {
			return d, true
		}
	}
	return 0, false
}
