package entities

import (
	"encoding/json"
	"time"
)

// PaymentOrder is the processor order handle returned to the checkout client
type PaymentOrder struct {
	OrderID       string `json:"order_id"`
	AppointmentID string `json:"appointment_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	KeyID         string `json:"key_id,omitempty"`
	Status        string `json:"status,omitempty"`
}

// ProcessorPayment is a payment as reported by the processor
type ProcessorPayment struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
	Status  string `json:"status"`
}

// Processor payment statuses
const (
	ProcessorPaymentCreated    = "created"
	ProcessorPaymentAuthorized = "authorized"
	ProcessorPaymentCaptured   = "captured"
	ProcessorPaymentFailed     = "failed"
)

// CaptureCommand asks the settlement store to capture an appointment's payment
type CaptureCommand struct {
	OrderRef      string
	PaymentRef    string
	AppointmentID string
	// Amount is the captured amount when the processor reported it; 0 skips the check
	Amount int64
}

// CaptureResult describes what the capture transaction did
type CaptureResult struct {
	Appointment     *Appointment       `json:"appointment"`
	Credit          *WalletTransaction `json:"credit,omitempty"`
	AlreadyCaptured bool               `json:"already_captured"`
}

// Webhook event kinds dispatched by the gateway
const (
	WebhookPaymentCaptured = "payment.captured"
	WebhookPaymentFailed   = "payment.failed"
	WebhookRefundCreated   = "refund.created"
)

// WebhookEvent is a stored processor webhook delivery
type WebhookEvent struct {
	ID           string          `json:"id" db:"id"`
	Provider     string          `json:"provider" db:"provider"`
	EventType    string          `json:"event_type" db:"event_type"`
	Payload      json.RawMessage `json:"payload" db:"payload"`
	Processed    bool            `json:"processed" db:"processed"`
	ErrorMessage *string         `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
}
