package providers

import (
	"context"
	"errors"

	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
)

var (
	// ErrOutcomeUnknown means the processor may or may not have applied the
	// call, typically because the time bound elapsed
	ErrOutcomeUnknown = errors.New("processor call outcome unknown")

	// ErrPayoutRejected means the processor refused the payout outright
	ErrPayoutRejected = errors.New("payout rejected by processor")
)

// CreateOrderRequest is an order creation call to the payment processor
type CreateOrderRequest struct {
	AppointmentID string
	Amount        int64
	Currency      string
}

// PaymentProcessor is the external payment processor
type PaymentProcessor interface {
	// CreateOrder creates an order. A timeout means the outcome is unknown.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*entities.PaymentOrder, error)

	// GetOrder fetches an order's current state
	GetOrder(ctx context.Context, orderID string) (*entities.PaymentOrder, error)

	// ListOrderPayments returns payments attempted against an order
	ListOrderPayments(ctx context.Context, orderID string) ([]entities.ProcessorPayment, error)
}

// PayoutRequest is a payout initiation call
type PayoutRequest struct {
	TransactionID string
	Amount        int64
	Currency      string
	Destination   string
}

// PayoutResult is the processor's answer to a payout initiation
type PayoutResult struct {
	ExternalRef string
	Status      string
	Reason      string
}

// Payout result statuses
const (
	PayoutStatusProcessed = "processed"
	PayoutStatusFailed    = "failed"
	PayoutStatusPending   = "pending"
)

// PayoutProcessor moves money from the platform to a provider
type PayoutProcessor interface {
	InitiatePayout(ctx context.Context, req PayoutRequest) (*PayoutResult, error)
}
