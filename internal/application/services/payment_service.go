package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/domain/providers"
	"github.com/zatekoja/expertbooking/backend/internal/domain/repositories"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/expertbooking/backend/pkg/errors"
)

// WebhookProvider names the processor in the webhook event store
const WebhookProvider = "razorpay"

// Capture sources, used for metrics and logs
const (
	CaptureSourceCheckout   = "checkout"
	CaptureSourceWebhook    = "webhook"
	CaptureSourceReconciler = "reconciler"
)

// Webhook outcomes reported to the processor
const (
	WebhookStatusProcessed = "processed"
	WebhookStatusDuplicate = "duplicate"
	WebhookStatusIgnored   = "ignored"
	WebhookStatusUnmatched = "unmatched"
	WebhookStatusRejected  = "rejected"
)

// PaymentConfig holds the processor credentials the service signs with
type PaymentConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Currency      string
}

// PaymentService creates processor orders and settles captured payments
type PaymentService struct {
	appointmentRepo repositories.AppointmentRepository
	providerRepo    repositories.ProviderRepository
	settlement      repositories.SettlementRepository
	webhookEvents   repositories.WebhookEventRepository
	processor       providers.PaymentProcessor
	notifications   *NotificationService
	broadcaster     providers.RealtimeBroadcaster
	metrics         *observability.Metrics
	cfg             PaymentConfig
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	appointmentRepo repositories.AppointmentRepository,
	providerRepo repositories.ProviderRepository,
	settlement repositories.SettlementRepository,
	webhookEvents repositories.WebhookEventRepository,
	processor providers.PaymentProcessor,
	notifications *NotificationService,
	broadcaster providers.RealtimeBroadcaster,
	metrics *observability.Metrics,
	cfg PaymentConfig,
) *PaymentService {
	return &PaymentService{
		appointmentRepo: appointmentRepo,
		providerRepo:    providerRepo,
		settlement:      settlement,
		webhookEvents:   webhookEvents,
		processor:       processor,
		notifications:   notifications,
		broadcaster:     broadcaster,
		metrics:         metrics,
		cfg:             cfg,
	}
}

// CreateOrderInput is a checkout request for an appointment
type CreateOrderInput struct {
	AppointmentID string `json:"appointment_id" validate:"required"`
	// Amount is optional; when sent it must equal the appointment amount
	Amount *int64 `json:"amount,omitempty" validate:"omitempty,gt=0"`
}

// CreateOrder returns the processor order for an appointment, creating it on
// first call. Repeated calls return the stored order handle.
func (s *PaymentService) CreateOrder(ctx context.Context, input CreateOrderInput, requesterID string) (*entities.PaymentOrder, error) {
	ctx, span := observability.StartSpan(ctx, "PaymentService.CreateOrder")
	defer span.End()

	appointment, err := s.appointmentRepo.GetByID(ctx, input.AppointmentID)
	if err != nil {
		return nil, err
	}
	if appointment.SeekerID != requesterID {
		return nil, apperrors.NewForbiddenError("only the seeker can pay for this appointment")
	}
	if appointment.PaymentStatus == entities.PaymentStatusPaid {
		return nil, apperrors.NewConflictError("appointment is already paid")
	}
	if appointment.Status != entities.AppointmentStatusPending {
		return nil, apperrors.NewConflictError(fmt.Sprintf("appointment is %s", appointment.Status))
	}
	if input.Amount != nil && *input.Amount != appointment.Amount {
		return nil, apperrors.NewValidationError(fmt.Sprintf("amount %d does not match the appointment amount %d", *input.Amount, appointment.Amount))
	}

	if appointment.ExternalOrderRef != nil {
		return s.orderFor(appointment, *appointment.ExternalOrderRef), nil
	}

	order, err := s.processor.CreateOrder(ctx, providers.CreateOrderRequest{
		AppointmentID: appointment.ID,
		Amount:        appointment.Amount,
		Currency:      appointment.Currency,
	})
	if err != nil {
		observability.RecordError(span, err)
		if errors.Is(err, providers.ErrOutcomeUnknown) {
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Str("appointment_id", appointment.ID).
				Msg("order creation outcome unknown, leaving appointment for webhook or sweep")
			return nil, apperrors.NewExternalError("order creation outcome unknown", err)
		}
		return nil, apperrors.NewExternalError("failed to create payment order", err)
	}

	stored, err := s.appointmentRepo.AttachOrderRef(ctx, appointment.ID, order.OrderID)
	if err != nil {
		return nil, err
	}
	if stored != order.OrderID {
		observability.LoggerFromContext(ctx).Info().
			Str("appointment_id", appointment.ID).
			Str("order_id", order.OrderID).
			Str("stored_order_id", stored).
			Msg("concurrent order creation, returning stored order")
	}

	return s.orderFor(appointment, stored), nil
}

func (s *PaymentService) orderFor(appointment *entities.Appointment, orderID string) *entities.PaymentOrder {
	return &entities.PaymentOrder{
		OrderID:       orderID,
		AppointmentID: appointment.ID,
		Amount:        appointment.Amount,
		Currency:      appointment.Currency,
		KeyID:         s.cfg.KeyID,
		Status:        "created",
	}
}

// VerifyPaymentInput is the checkout callback
type VerifyPaymentInput struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
}

// VerifyAndCapture checks the checkout signature and settles the payment
func (s *PaymentService) VerifyAndCapture(ctx context.Context, input VerifyPaymentInput) (*entities.CaptureResult, error) {
	if !VerifyCheckoutSignature(s.cfg.KeySecret, input.OrderID, input.PaymentID, input.Signature) {
		s.metrics.CountSignatureFailure(ctx, "checkout")
		observability.LoggerFromContext(ctx).Warn().Str("order_id", input.OrderID).Msg("checkout signature mismatch")
		return nil, apperrors.NewSignatureError("invalid payment signature")
	}

	return s.Capture(ctx, entities.CaptureCommand{
		OrderRef:   input.OrderID,
		PaymentRef: input.PaymentID,
	}, CaptureSourceCheckout)
}

// Capture runs the capture transaction and the post-commit side effects.
// A second capture of the same appointment reports AlreadyCaptured.
func (s *PaymentService) Capture(ctx context.Context, cmd entities.CaptureCommand, source string) (*entities.CaptureResult, error) {
	ctx, span := observability.StartSpan(ctx, "PaymentService.Capture")
	defer span.End()

	result, err := s.settlement.CaptureAndCredit(ctx, cmd)
	if err != nil {
		observability.RecordError(span, err)
		if apperrors.IsType(err, apperrors.ErrorTypeInvariant) {
			observability.Alert(ctx).Err(err).
				Str("order_id", cmd.OrderRef).
				Str("payment_id", cmd.PaymentRef).
				Str("source", source).
				Msg("capture rejected, manual refund required")
		}
		return nil, err
	}

	logger := observability.LoggerFromContext(ctx)
	if result.AlreadyCaptured {
		logger.Info().
			Str("appointment_id", result.Appointment.ID).
			Str("source", source).
			Msg("payment already captured")
		return result, nil
	}

	s.metrics.CountCapture(ctx, source)
	logger.Info().
		Str("appointment_id", result.Appointment.ID).
		Str("payment_id", cmd.PaymentRef).
		Int64("amount", result.Appointment.Amount).
		Str("source", source).
		Msg("payment captured and provider credited")

	provider, err := s.providerRepo.GetByID(ctx, result.Appointment.ProviderID)
	if err != nil {
		logger.Warn().Err(err).Str("provider_id", result.Appointment.ProviderID).Msg("provider lookup failed after capture")
		provider = nil
	}

	s.notifications.PaymentConfirmed(ctx, result.Appointment, provider)
	publishToParticipants(ctx, s.broadcaster, entities.EventPaymentCaptured, result.Appointment, result.Appointment, provider)
	if provider != nil && s.broadcaster != nil && result.Credit != nil {
		s.broadcaster.Publish(ctx, entities.EventWalletCredited, result.Credit, entities.UserRoom(provider.UserID))
	}

	return result, nil
}

// WebhookOutcome is what the webhook endpoint reports back
type WebhookOutcome struct {
	Status  string `json:"status"`
	EventID string `json:"event_id,omitempty"`
	Event   string `json:"event,omitempty"`
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity webhookPayment `json:"entity"`
		} `json:"payment"`
		Refund *struct {
			Entity webhookRefund `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

type webhookPayment struct {
	ID               string            `json:"id"`
	OrderID          string            `json:"order_id"`
	Amount           int64             `json:"amount"`
	Status           string            `json:"status"`
	ErrorDescription string            `json:"error_description"`
	Notes            map[string]string `json:"notes"`
}

type webhookRefund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
}

// HandleWebhook authenticates and applies one processor webhook delivery.
// Deliveries are idempotent by event id; unknown kinds are acknowledged and
// ignored without touching any state.
func (s *PaymentService) HandleWebhook(ctx context.Context, rawBody []byte, signature, eventID string) (*WebhookOutcome, error) {
	ctx, span := observability.StartSpan(ctx, "PaymentService.HandleWebhook")
	defer span.End()

	if !VerifyWebhookSignature(s.cfg.WebhookSecret, rawBody, signature) {
		s.metrics.CountSignatureFailure(ctx, "webhook")
		observability.LoggerFromContext(ctx).Warn().Msg("webhook signature mismatch")
		return nil, apperrors.NewSignatureError("invalid webhook signature")
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return nil, apperrors.NewValidationError("webhook body is not valid JSON")
	}
	if eventID == "" {
		sum := sha256.Sum256(rawBody)
		eventID = hex.EncodeToString(sum[:])
	}
	outcome := &WebhookOutcome{EventID: eventID, Event: envelope.Event}
	logger := observability.LoggerFromContext(ctx).With().Str("event_id", eventID).Str("event", envelope.Event).Logger()

	switch envelope.Event {
	case entities.WebhookPaymentCaptured, entities.WebhookPaymentFailed, entities.WebhookRefundCreated:
	default:
		logger.Info().Msg("ignoring unhandled webhook event")
		outcome.Status = WebhookStatusIgnored
		return outcome, nil
	}

	processed, err := s.webhookEvents.IsProcessed(ctx, WebhookProvider, eventID)
	if err != nil {
		return nil, err
	}
	if processed {
		logger.Info().Msg("duplicate webhook delivery")
		outcome.Status = WebhookStatusDuplicate
		return outcome, nil
	}

	if err := s.webhookEvents.Store(ctx, &entities.WebhookEvent{
		ID:        eventID,
		Provider:  WebhookProvider,
		EventType: envelope.Event,
		Payload:   json.RawMessage(rawBody),
	}); err != nil {
		return nil, err
	}

	status, err := s.applyWebhook(ctx, envelope)
	if apperrors.IsType(err, apperrors.ErrorTypeInvariant) {
		// Capture already raised the alert. Redelivery cannot fix the stored
		// state, so the delivery is closed and left for manual review.
		if markErr := s.webhookEvents.MarkRejected(ctx, WebhookProvider, eventID, err); markErr != nil {
			logger.Warn().Err(markErr).Msg("failed to record rejected webhook")
		}
		outcome.Status = WebhookStatusRejected
		return outcome, nil
	}
	if err != nil {
		if markErr := s.webhookEvents.MarkFailed(ctx, WebhookProvider, eventID, err); markErr != nil {
			logger.Warn().Err(markErr).Msg("failed to record webhook error")
		}
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			logger.Warn().Err(err).Msg("webhook does not match any appointment")
			outcome.Status = WebhookStatusUnmatched
			return outcome, nil
		}
		observability.RecordError(span, err)
		return nil, err
	}

	if err := s.webhookEvents.MarkProcessed(ctx, WebhookProvider, eventID); err != nil {
		logger.Warn().Err(err).Msg("failed to mark webhook processed")
	}
	outcome.Status = status
	return outcome, nil
}

func (s *PaymentService) applyWebhook(ctx context.Context, envelope webhookEnvelope) (string, error) {
	switch envelope.Event {
	case entities.WebhookPaymentCaptured:
		if envelope.Payload.Payment == nil {
			return "", apperrors.NewValidationError("payment.captured without a payment entity")
		}
		payment := envelope.Payload.Payment.Entity
		_, err := s.Capture(ctx, entities.CaptureCommand{
			OrderRef:      payment.OrderID,
			PaymentRef:    payment.ID,
			AppointmentID: payment.Notes["appointment_id"],
			Amount:        payment.Amount,
		}, CaptureSourceWebhook)
		if err != nil {
			return "", err
		}
		return WebhookStatusProcessed, nil

	case entities.WebhookPaymentFailed:
		if envelope.Payload.Payment == nil {
			return "", apperrors.NewValidationError("payment.failed without a payment entity")
		}
		payment := envelope.Payload.Payment.Entity
		appointment, changed, err := s.appointmentRepo.MarkPaymentFailed(ctx, payment.OrderID)
		if err != nil {
			return "", err
		}
		if !changed {
			observability.LoggerFromContext(ctx).Info().
				Str("appointment_id", appointment.ID).
				Str("payment_status", string(appointment.PaymentStatus)).
				Msg("payment failure for settled appointment, nothing to do")
			return WebhookStatusProcessed, nil
		}
		observability.LoggerFromContext(ctx).Info().
			Str("appointment_id", appointment.ID).
			Str("payment_id", payment.ID).
			Str("reason", payment.ErrorDescription).
			Msg("payment attempt failed")
		if s.broadcaster != nil {
			s.broadcaster.Publish(ctx, entities.EventPaymentFailed, appointment, entities.UserRoom(appointment.SeekerID))
		}
		return WebhookStatusProcessed, nil

	default:
		// refund.created: recorded only, refunds are settled outside the ledger
		var refund webhookRefund
		if envelope.Payload.Refund != nil {
			refund = envelope.Payload.Refund.Entity
		}
		observability.LoggerFromContext(ctx).Info().
			Str("refund_id", refund.ID).
			Str("payment_id", refund.PaymentID).
			Int64("amount", refund.Amount).
			Msg("refund recorded, no ledger change")
		return WebhookStatusProcessed, nil
	}
}

// ComputeCheckoutSignature is hex(HMAC-SHA256(secret, orderID|paymentID))
func ComputeCheckoutSignature(secret, orderID, paymentID string) string {
	return computeHMAC(secret, []byte(orderID+"|"+paymentID))
}

// VerifyCheckoutSignature compares in constant time
func VerifyCheckoutSignature(secret, orderID, paymentID, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := ComputeCheckoutSignature(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ComputeWebhookSignature is hex(HMAC-SHA256(secret, body))
func ComputeWebhookSignature(secret string, body []byte) string {
	return computeHMAC(secret, body)
}

// VerifyWebhookSignature compares in constant time
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := ComputeWebhookSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func computeHMAC(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
