package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/domain/providers"
	"github.com/zatekoja/expertbooking/backend/internal/domain/repositories"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/expertbooking/backend/pkg/errors"
)

// ReserveCommand asks for one slot with a provider
type ReserveCommand struct {
	ProviderID    string                 `json:"provider_id" validate:"required"`
	SeekerID      string                 `json:"-"`
	SeekerEmail   string                 `json:"-"`
	Date          string                 `json:"date" validate:"required,date"`
	TimeLabel     string                 `json:"time_label" validate:"required,timelabel"`
	Medium        entities.SessionMedium `json:"medium" validate:"omitempty,oneof=VIDEO AUDIO CHAT"`
	PaymentMethod entities.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=ONLINE WALLET"`
}

// BookingService arbitrates slot reservations. The database decides races:
// a reserve either inserts the only active row for its slot or gets a
// ConflictError.
type BookingService struct {
	appointmentRepo repositories.AppointmentRepository
	providerRepo    repositories.ProviderRepository
	availability    *AvailabilityService
	notifications   *NotificationService
	broadcaster     providers.RealtimeBroadcaster
	metrics         *observability.Metrics
	defaultLoc      *time.Location
	now             func() time.Time
}

// NewBookingService creates a new booking service
func NewBookingService(
	appointmentRepo repositories.AppointmentRepository,
	providerRepo repositories.ProviderRepository,
	availability *AvailabilityService,
	notifications *NotificationService,
	broadcaster providers.RealtimeBroadcaster,
	metrics *observability.Metrics,
	defaultLoc *time.Location,
) *BookingService {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &BookingService{
		appointmentRepo: appointmentRepo,
		providerRepo:    providerRepo,
		availability:    availability,
		notifications:   notifications,
		broadcaster:     broadcaster,
		metrics:         metrics,
		defaultLoc:      defaultLoc,
		now:             time.Now,
	}
}

// Reserve creates a PENDING appointment for the slot
func (s *BookingService) Reserve(ctx context.Context, cmd ReserveCommand) (*entities.Appointment, error) {
	ctx, span := observability.StartSpan(ctx, "BookingService.Reserve")
	defer span.End()

	provider, err := s.providerRepo.GetByID(ctx, cmd.ProviderID)
	if err != nil {
		return nil, err
	}
	if !provider.IsAvailable {
		return nil, apperrors.NewValidationError("provider is not accepting bookings")
	}

	label, err := entities.ParseTimeLabel(cmd.TimeLabel)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	rule := provider.Rule()
	if !rule.HasLabel(label) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("time slot %s is not offered by this provider", label.Raw))
	}

	loc := provider.Location(s.defaultLoc)
	day, err := time.ParseInLocation(time.DateOnly, cmd.Date, loc)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("date %q must be in YYYY-MM-DD format", cmd.Date))
	}
	if !rule.AllowsWeekday(day.Weekday()) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("provider does not take bookings on %s", day.Weekday()))
	}
	if !label.StartOn(day).After(s.now()) {
		return nil, apperrors.NewValidationError("slot is in the past")
	}

	medium := cmd.Medium
	if medium == "" {
		medium = entities.SessionMediumVideo
	}
	method := cmd.PaymentMethod
	if method == "" {
		method = entities.PaymentMethodOnline
	}

	now := s.now().UTC()
	appointment := &entities.Appointment{
		ID:            uuid.New().String(),
		ProviderID:    provider.ID,
		SeekerID:      cmd.SeekerID,
		SeekerEmail:   cmd.SeekerEmail,
		Date:          day.Format(time.DateOnly),
		StartTime:     label.Start,
		TimeLabel:     label.Raw,
		Medium:        medium,
		PaymentMethod: method,
		Status:        entities.AppointmentStatusPending,
		PaymentStatus: entities.PaymentStatusPending,
		Amount:        provider.SessionFee,
		Currency:      provider.Currency,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.appointmentRepo.Create(ctx, appointment); err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
			s.metrics.CountReservation(ctx, "conflict")
		} else {
			observability.RecordError(span, err)
			s.metrics.CountReservation(ctx, "error")
		}
		return nil, err
	}
	s.metrics.CountReservation(ctx, "success")

	observability.LoggerFromContext(ctx).Info().
		Str("appointment_id", appointment.ID).
		Str("provider_id", provider.ID).
		Str("slot", appointment.SlotDescription()).
		Msg("slot reserved")

	s.availability.InvalidateProvider(ctx, provider.ID, providerLocation(provider), appointment.Date)
	s.notifications.BookingReceived(ctx, appointment, provider)
	s.publish(ctx, entities.EventAppointmentCreated, appointment, provider)

	return appointment, nil
}

// Cancel cancels an appointment on behalf of one of its participants.
// Cancelling twice returns the cancelled appointment both times.
func (s *BookingService) Cancel(ctx context.Context, appointmentID, requesterID string) (*entities.Appointment, error) {
	appointment, provider, err := s.participantView(ctx, appointmentID, requesterID)
	if err != nil {
		return nil, err
	}
	if appointment.Status == entities.AppointmentStatusCancelled {
		return appointment, nil
	}
	if !appointment.Status.CanTransitionTo(entities.AppointmentStatusCancelled) {
		return nil, apperrors.NewConflictError(fmt.Sprintf("appointment in status %s cannot be cancelled", appointment.Status))
	}

	cancelled, err := s.appointmentRepo.Cancel(ctx, appointmentID, requesterID)
	if err != nil {
		return nil, err
	}

	logger := observability.LoggerFromContext(ctx)
	if appointment.PaymentStatus == entities.PaymentStatusPaid {
		logger.Warn().Str("appointment_id", appointmentID).Msg("paid appointment cancelled, refund must be issued manually")
	}
	logger.Info().Str("appointment_id", appointmentID).Str("cancelled_by", requesterID).Msg("appointment cancelled")

	s.availability.InvalidateProvider(ctx, cancelled.ProviderID, providerLocation(provider), cancelled.Date)
	s.notifications.BookingCancelled(ctx, cancelled, provider)
	s.publish(ctx, entities.EventAppointmentCancelled, cancelled, provider)

	return cancelled, nil
}

// Get returns an appointment to one of its participants
func (s *BookingService) Get(ctx context.Context, appointmentID, requesterID string) (*entities.Appointment, error) {
	appointment, _, err := s.participantView(ctx, appointmentID, requesterID)
	return appointment, err
}

func (s *BookingService) participantView(ctx context.Context, appointmentID, requesterID string) (*entities.Appointment, *entities.Provider, error) {
	appointment, err := s.appointmentRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, nil, err
	}

	provider, err := s.providerRepo.GetByID(ctx, appointment.ProviderID)
	if err != nil && !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return nil, nil, err
	}

	if !appointment.IsParticipant(requesterID, provider) {
		return nil, nil, apperrors.NewForbiddenError("only the seeker or the provider can access this appointment")
	}
	return appointment, provider, nil
}

// publish sends an appointment event to both participants' rooms
func (s *BookingService) publish(ctx context.Context, event string, appointment *entities.Appointment, provider *entities.Provider) {
	publishToParticipants(ctx, s.broadcaster, event, appointment, appointment, provider)
}

func publishToParticipants(ctx context.Context, broadcaster providers.RealtimeBroadcaster, event string, payload interface{}, appointment *entities.Appointment, provider *entities.Provider) {
	if broadcaster == nil {
		return
	}
	broadcaster.Publish(ctx, event, payload, entities.UserRoom(appointment.SeekerID))
	if provider != nil && provider.UserID != "" {
		broadcaster.Publish(ctx, event, payload, entities.UserRoom(provider.UserID))
	}
}
