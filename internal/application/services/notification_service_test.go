package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
)

func TestNotificationService_RenderTemplate(t *testing.T) {
	service := &NotificationService{}

	tests := []struct {
		name     string
		template string
		context  *NotificationContext
		want     string
	}{
		{
			name:     "Replace all placeholders",
			template: "{{provider_name}} on {{date}} at {{time}} via {{medium}} for {{amount}}",
			context: &NotificationContext{
				ProviderName: "Dr. Rao",
				Date:         "2030-01-07",
				Time:         "09:00-10:00",
				Medium:       "VIDEO",
				Amount:       50000,
				Currency:     "INR",
			},
			want: "Dr. Rao on 2030-01-07 at 09:00-10:00 via video for INR 500.00",
		},
		{
			name:     "Values are escaped",
			template: "<p>{{provider_name}}</p>",
			context:  &NotificationContext{ProviderName: `<script>alert("x")</script>`},
			want:     "<p>&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;</p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.renderTemplate(tt.template, tt.context)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "INR 500.00", FormatAmount(50000, "INR"))
	assert.Equal(t, "INR 0.05", FormatAmount(5, "INR"))
	assert.Equal(t, "-USD 1.50", FormatAmount(-150, "USD"))
}

func TestNotificationService_Send(t *testing.T) {
	ctx := context.Background()
	appointment := pendingAppointment()
	provider := testProvider()

	t.Run("booking received goes to both parties", func(t *testing.T) {
		dispatcher := &recordingDispatcher{deliver: true}
		service := NewNotificationService(dispatcher, false)

		service.BookingReceived(ctx, appointment, provider)

		msgs := dispatcher.messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, "seeker@example.com", msgs[0].To)
		assert.Equal(t, "rao@example.com", msgs[1].To)
		assert.Equal(t, "New booking request for 2030-01-07", msgs[0].Subject)
		assert.Contains(t, msgs[0].HTML, "INR 500.00")
	})

	t.Run("expiry goes to the seeker only", func(t *testing.T) {
		dispatcher := &recordingDispatcher{deliver: true}
		service := NewNotificationService(dispatcher, false)

		service.BookingExpired(ctx, appointment, provider)

		msgs := dispatcher.messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "seeker@example.com", msgs[0].To)
	})

	t.Run("failed payout names the reason", func(t *testing.T) {
		dispatcher := &recordingDispatcher{deliver: true}
		service := NewNotificationService(dispatcher, false)
		reason := "account closed"

		service.PayoutResolved(ctx, provider, &entities.WalletTransaction{
			Amount: 2000, Status: entities.TransactionStatusFailed, FailureReason: &reason,
		}, "INR")

		msgs := dispatcher.messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "Payout of INR 20.00 failed", msgs[0].Subject)
		assert.Contains(t, msgs[0].HTML, "account closed")
	})

	t.Run("undelivered mail does not fail the caller", func(t *testing.T) {
		dispatcher := &recordingDispatcher{deliver: false}
		service := NewNotificationService(dispatcher, false)

		assert.NotPanics(t, func() { service.BookingCancelled(ctx, appointment, provider) })
		assert.Len(t, dispatcher.messages(), 2)
	})

	t.Run("async sends outlive the request context", func(t *testing.T) {
		dispatcher := &recordingDispatcher{deliver: true}
		service := NewNotificationService(dispatcher, true)
		reqCtx, cancel := context.WithCancel(ctx)

		service.PaymentConfirmed(reqCtx, appointment, provider)
		cancel()

		assert.Eventually(t, func() bool { return len(dispatcher.messages()) == 2 }, time.Second, 10*time.Millisecond)
	})

	t.Run("nil service is a no-op", func(t *testing.T) {
		var service *NotificationService
		assert.NotPanics(t, func() { service.BookingReceived(ctx, appointment, provider) })
	})
}
