package services

import (
	"context"
	"time"

	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/domain/providers"
	"github.com/zatekoja/expertbooking/backend/internal/domain/repositories"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/observability"
)

const reconcileBatchSize = 100

// PayoutDriver re-drives a pending payout
type PayoutDriver interface {
	Process(ctx context.Context, transactionID string) error
}

// ReconciliationService settles what the request path left behind: unpaid
// reservations past their TTL and payouts with an unknown outcome.
type ReconciliationService struct {
	appointmentRepo repositories.AppointmentRepository
	providerRepo    repositories.ProviderRepository
	walletRepo      repositories.WalletRepository
	processor       providers.PaymentProcessor
	payments        *PaymentService
	payouts         PayoutDriver
	availability    *AvailabilityService
	notifications   *NotificationService
	broadcaster     providers.RealtimeBroadcaster
	pendingTTL      time.Duration
	now             func() time.Time
}

// SweepResult counts what one sweep did
type SweepResult struct {
	Captured       int `json:"captured"`
	Expired        int `json:"expired"`
	Skipped        int `json:"skipped"`
	PayoutsRetried int `json:"payouts_retried"`
	Errors         int `json:"errors"`
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(
	appointmentRepo repositories.AppointmentRepository,
	providerRepo repositories.ProviderRepository,
	walletRepo repositories.WalletRepository,
	processor providers.PaymentProcessor,
	payments *PaymentService,
	payouts PayoutDriver,
	availability *AvailabilityService,
	notifications *NotificationService,
	broadcaster providers.RealtimeBroadcaster,
	pendingTTL time.Duration,
) *ReconciliationService {
	if pendingTTL <= 0 {
		pendingTTL = 30 * time.Minute
	}
	return &ReconciliationService{
		appointmentRepo: appointmentRepo,
		providerRepo:    providerRepo,
		walletRepo:      walletRepo,
		processor:       processor,
		payments:        payments,
		payouts:         payouts,
		availability:    availability,
		notifications:   notifications,
		broadcaster:     broadcaster,
		pendingTTL:      pendingTTL,
		now:             time.Now,
	}
}

// Run sweeps immediately and then every interval until ctx is done
func (s *ReconciliationService) Run(ctx context.Context, interval time.Duration) {
	logger := observability.GetLogger()
	logger.Info().Dur("interval", interval).Dur("pending_ttl", s.pendingTTL).Msg("reconciliation started")

	s.logSweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("reconciliation stopped")
			return
		case <-ticker.C:
			s.logSweep(ctx)
		}
	}
}

func (s *ReconciliationService) logSweep(ctx context.Context) {
	result := s.Sweep(ctx)
	observability.GetLogger().Info().
		Int("captured", result.Captured).
		Int("expired", result.Expired).
		Int("skipped", result.Skipped).
		Int("payouts_retried", result.PayoutsRetried).
		Int("errors", result.Errors).
		Msg("reconciliation sweep finished")
}

// Sweep performs one reconciliation pass
func (s *ReconciliationService) Sweep(ctx context.Context) SweepResult {
	ctx, span := observability.StartSpan(ctx, "ReconciliationService.Sweep")
	defer span.End()

	var result SweepResult
	cutoff := s.now().Add(-s.pendingTTL)
	logger := observability.LoggerFromContext(ctx)

	stale, err := s.appointmentRepo.ListStalePending(ctx, cutoff, reconcileBatchSize)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list stale appointments")
		result.Errors++
	}
	for _, appointment := range stale {
		if ctx.Err() != nil {
			return result
		}
		s.reconcileAppointment(ctx, appointment, &result)
	}

	payouts, err := s.walletRepo.ListStalePayouts(ctx, cutoff, reconcileBatchSize)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list stale payouts")
		result.Errors++
	}
	for _, payout := range payouts {
		if ctx.Err() != nil {
			return result
		}
		result.PayoutsRetried++
		if err := s.payouts.Process(ctx, payout.ID); err != nil {
			logger.Warn().Err(err).Str("transaction_id", payout.ID).Msg("stale payout still unresolved")
			result.Errors++
		}
	}

	return result
}

func (s *ReconciliationService) reconcileAppointment(ctx context.Context, appointment *entities.Appointment, result *SweepResult) {
	logger := observability.LoggerFromContext(ctx).With().Str("appointment_id", appointment.ID).Logger()

	if appointment.ExternalOrderRef != nil {
		orderID := *appointment.ExternalOrderRef
		payments, err := s.processor.ListOrderPayments(ctx, orderID)
		if err != nil {
			// Without the processor's answer the appointment might be paid.
			logger.Warn().Err(err).Str("order_id", orderID).Msg("cannot query processor, keeping appointment")
			result.Errors++
			return
		}

		inFlight := false
		for _, payment := range payments {
			switch payment.Status {
			case entities.ProcessorPaymentCaptured:
				_, err := s.payments.Capture(ctx, entities.CaptureCommand{
					OrderRef:      orderID,
					PaymentRef:    payment.ID,
					AppointmentID: appointment.ID,
					Amount:        payment.Amount,
				}, CaptureSourceReconciler)
				if err != nil {
					logger.Error().Err(err).Str("payment_id", payment.ID).Msg("late capture failed")
					result.Errors++
					return
				}
				result.Captured++
				return
			case entities.ProcessorPaymentAuthorized, entities.ProcessorPaymentCreated:
				inFlight = true
			}
		}
		if inFlight {
			logger.Info().Str("order_id", orderID).Msg("payment in flight, not expiring")
			result.Skipped++
			return
		}
	}

	expired, ok, err := s.appointmentRepo.ExpireUnpaid(ctx, appointment.ID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to expire appointment")
		result.Errors++
		return
	}
	if !ok {
		result.Skipped++
		return
	}
	result.Expired++
	logger.Info().Str("slot", expired.SlotDescription()).Msg("unpaid appointment expired")

	provider, err := s.providerRepo.GetByID(ctx, expired.ProviderID)
	if err != nil {
		provider = nil
	}
	s.availability.InvalidateProvider(ctx, expired.ProviderID, providerLocation(provider), expired.Date)
	s.notifications.BookingExpired(ctx, expired, provider)
	publishToParticipants(ctx, s.broadcaster, entities.EventAppointmentCancelled, expired, expired, provider)
}
