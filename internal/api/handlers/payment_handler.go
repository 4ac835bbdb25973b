package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/zatekoja/expertbooking/backend/internal/application/services"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/observability"
)

// Headers sent by the payment processor on webhook deliveries
const (
	HeaderWebhookSignature = "X-Razorpay-Signature"
	HeaderWebhookEventID   = "X-Razorpay-Event-Id"
)

// PaymentService defines the payment operations the handler needs
type PaymentService interface {
	CreateOrder(ctx context.Context, input services.CreateOrderInput, requesterID string) (*entities.PaymentOrder, error)
	VerifyAndCapture(ctx context.Context, input services.VerifyPaymentInput) (*entities.CaptureResult, error)
	HandleWebhook(ctx context.Context, rawBody []byte, signature, eventID string) (*services.WebhookOutcome, error)
}

// PaymentHandler handles checkout and processor callbacks
type PaymentHandler struct {
	service PaymentService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(service PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// CreateOrder handles POST /api/payments/create-order
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var input services.CreateOrderInput
	if !decodeJSON(w, r, &input) {
		return
	}

	order, err := h.service.CreateOrder(r.Context(), input, userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, order)
}

// VerifyPayment handles POST /api/payments/verify-payment
func (h *PaymentHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	var input services.VerifyPaymentInput
	if !decodeJSON(w, r, &input) {
		return
	}

	result, err := h.service.VerifyAndCapture(r.Context(), input)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// Webhook handles POST /api/payments/webhook. The signature covers the raw
// body, so it is read unparsed. Any 2xx tells the processor to stop retrying.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "webhook body too large")
			return
		}
		respondWithError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	outcome, err := h.service.HandleWebhook(r.Context(), body, r.Header.Get(HeaderWebhookSignature), r.Header.Get(HeaderWebhookEventID))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	// ignored kinds are already logged once by the service
	if outcome.Status != services.WebhookStatusIgnored {
		observability.LoggerFromContext(r.Context()).Debug().
			Str("event_id", outcome.EventID).
			Str("status", outcome.Status).
			Msg("webhook acknowledged")
	}
	respondWithJSON(w, http.StatusOK, outcome)
}
