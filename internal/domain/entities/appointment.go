package entities

import (
	"fmt"
	"strings"
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "PENDING"
	AppointmentStatusConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentStatusCancelled AppointmentStatus = "CANCELLED"
)

// CanTransitionTo reports whether the booking state machine allows moving
// from s to next. CANCELLED is terminal.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	switch s {
	case AppointmentStatusPending:
		return next == AppointmentStatusConfirmed || next == AppointmentStatusCancelled
	case AppointmentStatusConfirmed:
		return next == AppointmentStatusCancelled
	default:
		return false
	}
}

// IsActive reports whether the appointment still occupies its slot
func (s AppointmentStatus) IsActive() bool {
	return s == AppointmentStatusPending || s == AppointmentStatusConfirmed
}

// PaymentStatus represents the payment state of an appointment
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// SessionMedium is how the session is held
type SessionMedium string

const (
	SessionMediumVideo SessionMedium = "VIDEO"
	SessionMediumAudio SessionMedium = "AUDIO"
	SessionMediumChat  SessionMedium = "CHAT"
)

// PaymentMethod is how the seeker intends to pay
type PaymentMethod string

const (
	PaymentMethodOnline PaymentMethod = "ONLINE"
	PaymentMethodWallet PaymentMethod = "WALLET"
)

// CancelledBySystem marks appointments released by the reconciliation sweep
const CancelledBySystem = "system"

// Appointment represents a reserved slot with a provider
type Appointment struct {
	ID                 string            `json:"id" db:"id"`
	ProviderID         string            `json:"provider_id" db:"provider_id"`
	SeekerID           string            `json:"seeker_id" db:"seeker_id"`
	SeekerEmail        string            `json:"seeker_email,omitempty" db:"seeker_email"`
	Date               string            `json:"date" db:"date"`
	StartTime          string            `json:"start_time" db:"start_time"`
	TimeLabel          string            `json:"time_label" db:"time_label"`
	Medium             SessionMedium     `json:"medium" db:"medium"`
	PaymentMethod      PaymentMethod     `json:"payment_method" db:"payment_method"`
	Status             AppointmentStatus `json:"status" db:"status"`
	PaymentStatus      PaymentStatus     `json:"payment_status" db:"payment_status"`
	ExternalOrderRef   *string           `json:"external_order_ref,omitempty" db:"external_order_ref"`
	ExternalPaymentRef *string           `json:"external_payment_ref,omitempty" db:"external_payment_ref"`
	Amount             int64             `json:"amount" db:"amount"`
	Currency           string            `json:"currency" db:"currency"`
	CancelledBy        *string           `json:"cancelled_by,omitempty" db:"cancelled_by"`
	CreatedAt          time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at" db:"updated_at"`
}

// IsParticipant reports whether userID is the seeker or the provider's user
func (a *Appointment) IsParticipant(userID string, provider *Provider) bool {
	if userID == "" {
		return false
	}
	if a.SeekerID == userID {
		return true
	}
	return provider != nil && provider.UserID == userID
}

// SlotDescription names the slot for user-facing messages
func (a *Appointment) SlotDescription() string {
	return fmt.Sprintf("%s %s", a.Date, a.TimeLabel)
}

// TimeLabel is a parsed "HH:MM-HH:MM" interval
type TimeLabel struct {
	Raw   string
	Start string
	End   string
}

// ParseTimeLabel parses a "start-end" label. Both bounds must be valid
// 24h clock times and start must precede end.
func ParseTimeLabel(raw string) (TimeLabel, error) {
	parts := strings.Split(strings.TrimSpace(raw), "-")
	if len(parts) != 2 {
		return TimeLabel{}, fmt.Errorf("time label %q is not of the form HH:MM-HH:MM", raw)
	}

	start, err := time.Parse("15:04", strings.TrimSpace(parts[0]))
	if err != nil {
		return TimeLabel{}, fmt.Errorf("time label %q has an invalid start: %w", raw, err)
	}
	end, err := time.Parse("15:04", strings.TrimSpace(parts[1]))
	if err != nil {
		return TimeLabel{}, fmt.Errorf("time label %q has an invalid end: %w", raw, err)
	}
	if !start.Before(end) {
		return TimeLabel{}, fmt.Errorf("time label %q ends before it starts", raw)
	}

	return TimeLabel{
		Raw:   start.Format("15:04") + "-" + end.Format("15:04"),
		Start: start.Format("15:04"),
		End:   end.Format("15:04"),
	}, nil
}

// StartOn returns the label's start instant on the given local date
func (l TimeLabel) StartOn(date time.Time) time.Time {
	t, _ := time.Parse("15:04", l.Start)
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location())
}
