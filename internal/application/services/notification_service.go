package services

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/domain/providers"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/observability"
)

// Notification kinds
const (
	NotificationBookingReceived  = "booking_received"
	NotificationBookingCancelled = "booking_cancelled"
	NotificationPaymentConfirmed = "payment_confirmed"
	NotificationBookingExpired   = "booking_expired"
	NotificationPayoutCompleted  = "payout_completed"
	NotificationPayoutFailed     = "payout_failed"
)

type notificationTemplate struct {
	Subject string
	Body    string
}

var notificationTemplates = map[string]notificationTemplate{
	NotificationBookingReceived: {
		Subject: "New booking request for {{date}}",
		Body:    "<p>A session on <b>{{date}}</b> at <b>{{time}}</b> ({{medium}}) has been reserved with {{provider_name}}.</p><p>It is held until payment of {{amount}} is received.</p>",
	},
	NotificationBookingCancelled: {
		Subject: "Booking cancelled for {{date}}",
		Body:    "<p>The session on <b>{{date}}</b> at <b>{{time}}</b> with {{provider_name}} has been cancelled.</p>",
	},
	NotificationPaymentConfirmed: {
		Subject: "Booking confirmed for {{date}}",
		Body:    "<p>Payment of {{amount}} was received. Your session with {{provider_name}} on <b>{{date}}</b> at <b>{{time}}</b> is confirmed.</p>",
	},
	NotificationBookingExpired: {
		Subject: "Booking released for {{date}}",
		Body:    "<p>No payment arrived for the session on <b>{{date}}</b> at <b>{{time}}</b> with {{provider_name}}, so the slot has been released.</p>",
	},
	NotificationPayoutCompleted: {
		Subject: "Payout of {{amount}} sent",
		Body:    "<p>Your payout of {{amount}} has been sent. Reference: {{reference}}.</p>",
	},
	NotificationPayoutFailed: {
		Subject: "Payout of {{amount}} failed",
		Body:    "<p>Your payout of {{amount}} could not be completed ({{reason}}). The amount is back in your wallet.</p>",
	},
}

// NotificationService renders and sends emails about bookings and payouts.
// Delivery problems are logged and never propagate to the caller.
type NotificationService struct {
	dispatcher providers.NotificationDispatcher
	async      bool
}

// NewNotificationService creates a new notification service. With async set,
// sends run in the background detached from the request context.
func NewNotificationService(dispatcher providers.NotificationDispatcher, async bool) *NotificationService {
	return &NotificationService{dispatcher: dispatcher, async: async}
}

// NotificationContext contains all data needed for notification rendering
type NotificationContext struct {
	AppointmentID string
	ProviderName  string
	Date          string
	Time          string
	Medium        string
	Amount        int64
	Currency      string
	Reference     string
	Reason        string
}

func appointmentContext(appointment *entities.Appointment, provider *entities.Provider) *NotificationContext {
	nc := &NotificationContext{
		AppointmentID: appointment.ID,
		Date:          appointment.Date,
		Time:          appointment.TimeLabel,
		Medium:        string(appointment.Medium),
		Amount:        appointment.Amount,
		Currency:      appointment.Currency,
	}
	if provider != nil {
		nc.ProviderName = provider.Name
	}
	return nc
}

// BookingReceived tells both parties a slot was reserved
func (n *NotificationService) BookingReceived(ctx context.Context, appointment *entities.Appointment, provider *entities.Provider) {
	nc := appointmentContext(appointment, provider)
	n.send(ctx, appointment.SeekerEmail, NotificationBookingReceived, nc)
	if provider != nil {
		n.send(ctx, provider.Email, NotificationBookingReceived, nc)
	}
}

// BookingCancelled tells both parties the appointment was cancelled
func (n *NotificationService) BookingCancelled(ctx context.Context, appointment *entities.Appointment, provider *entities.Provider) {
	nc := appointmentContext(appointment, provider)
	n.send(ctx, appointment.SeekerEmail, NotificationBookingCancelled, nc)
	if provider != nil {
		n.send(ctx, provider.Email, NotificationBookingCancelled, nc)
	}
}

// PaymentConfirmed tells both parties the booking is paid and confirmed
func (n *NotificationService) PaymentConfirmed(ctx context.Context, appointment *entities.Appointment, provider *entities.Provider) {
	nc := appointmentContext(appointment, provider)
	n.send(ctx, appointment.SeekerEmail, NotificationPaymentConfirmed, nc)
	if provider != nil {
		n.send(ctx, provider.Email, NotificationPaymentConfirmed, nc)
	}
}

// BookingExpired tells the seeker an unpaid reservation was released
func (n *NotificationService) BookingExpired(ctx context.Context, appointment *entities.Appointment, provider *entities.Provider) {
	n.send(ctx, appointment.SeekerEmail, NotificationBookingExpired, appointmentContext(appointment, provider))
}

// PayoutResolved tells the provider how a payout ended
func (n *NotificationService) PayoutResolved(ctx context.Context, provider *entities.Provider, payout *entities.WalletTransaction, currency string) {
	if provider == nil {
		return
	}

	nc := &NotificationContext{Amount: payout.Amount, Currency: currency}
	kind := NotificationPayoutCompleted
	if payout.Status == entities.TransactionStatusFailed {
		kind = NotificationPayoutFailed
		if payout.FailureReason != nil {
			nc.Reason = *payout.FailureReason
		}
	}
	if payout.ExternalRef != nil {
		nc.Reference = *payout.ExternalRef
	}
	n.send(ctx, provider.Email, kind, nc)
}

func (n *NotificationService) send(ctx context.Context, to, kind string, nc *NotificationContext) {
	if n == nil || n.dispatcher == nil || to == "" {
		return
	}

	tmpl, ok := notificationTemplates[kind]
	if !ok {
		observability.LoggerFromContext(ctx).Warn().Str("kind", kind).Msg("no notification template")
		return
	}

	subject := n.renderTemplate(tmpl.Subject, nc)
	body := n.renderTemplate(tmpl.Body, nc)

	if !n.async {
		n.deliver(ctx, to, kind, subject, body, nc.AppointmentID)
		return
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				observability.LoggerFromContext(detached).Error().Interface("panic", r).Str("kind", kind).Msg("notification panicked")
			}
		}()
		n.deliver(detached, to, kind, subject, body, nc.AppointmentID)
	}()
}

func (n *NotificationService) deliver(ctx context.Context, to, kind, subject, body, appointmentID string) {
	delivered := n.dispatcher.Send(ctx, to, subject, body)
	if !delivered {
		observability.LoggerFromContext(ctx).Warn().
			Str("kind", kind).
			Str("appointment_id", appointmentID).
			Msg("notification not delivered")
	}
}

// renderTemplate replaces placeholders in template. Values are HTML-escaped.
func (n *NotificationService) renderTemplate(template string, nc *NotificationContext) string {
	replacements := map[string]string{
		"{{date}}":          nc.Date,
		"{{time}}":          nc.Time,
		"{{medium}}":        strings.ToLower(nc.Medium),
		"{{provider_name}}": nc.ProviderName,
		"{{amount}}":        FormatAmount(nc.Amount, nc.Currency),
		"{{reference}}":     nc.Reference,
		"{{reason}}":        nc.Reason,
	}

	result := template
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, html.EscapeString(value))
	}

	return result
}

// FormatAmount renders minor units as a decimal amount with its currency code
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%s %d.%02d", sign, currency, minor/100, minor%100)
}
