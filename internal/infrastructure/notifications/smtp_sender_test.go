package notifications

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/expertbooking/backend/pkg/config"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func TestNewSMTPSender(t *testing.T) {
	t.Run("requires host", func(t *testing.T) {
		_, err := NewSMTPSender(config.SMTPConfig{})
		assert.Error(t, err)
	})

	t.Run("falls back to user as sender", func(t *testing.T) {
		sender, err := NewSMTPSender(config.SMTPConfig{Host: "smtp.example.com", Port: 587, User: "noreply@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "noreply@example.com", sender.from)
	})
}

func TestSMTPSender_Send(t *testing.T) {
	t.Run("sends html with plain text alternative", func(t *testing.T) {
		dialer := &fakeDialer{}
		sender := &SMTPSender{from: "bookings@example.com", dialer: dialer}

		ok := sender.Send(context.Background(), "seeker@example.com", "Booking confirmed", "<p>See you <b>Monday</b></p>")

		assert.True(t, ok)
		require.Len(t, dialer.sent, 1)
		msg := dialer.sent[0]
		assert.Equal(t, []string{"seeker@example.com"}, msg.GetHeader("To"))
		assert.Equal(t, []string{"Booking confirmed"}, msg.GetHeader("Subject"))

		var buf bytes.Buffer
		_, err := msg.WriteTo(&buf)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "See you Monday")
	})

	t.Run("delivery failure returns false", func(t *testing.T) {
		sender := &SMTPSender{from: "bookings@example.com", dialer: &fakeDialer{err: errors.New("connection refused")}}

		assert.False(t, sender.Send(context.Background(), "seeker@example.com", "Hi", "<p>Hi</p>"))
	})

	t.Run("missing recipient returns false", func(t *testing.T) {
		dialer := &fakeDialer{}
		sender := &SMTPSender{from: "bookings@example.com", dialer: dialer}

		assert.False(t, sender.Send(context.Background(), "", "Hi", "<p>Hi</p>"))
		assert.Empty(t, dialer.sent)
	})
}

func TestLogDispatcher_Send(t *testing.T) {
	assert.True(t, LogDispatcher{}.Send(context.Background(), "a@example.com", "Subject", "<p>x</p>"))
}
