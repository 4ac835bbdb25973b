package entities

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Realtime event names published to rooms
const (
	EventAppointmentCreated   = "appointment:created"
	EventAppointmentCancelled = "appointment:cancelled"
	EventPaymentCaptured      = "payment:captured"
	EventPaymentFailed        = "payment:failed"
	EventWalletCredited       = "wallet:credited"
	EventPayoutUpdated        = "payout:updated"
	EventProposalCreated      = "proposal:created"
	EventProposalUpdated      = "proposal:updated"
)

// RealtimeEvent is a message fanned out to a room's subscribers
type RealtimeEvent struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Room      string      `json:"room,omitempty"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewRealtimeEvent creates a new realtime event
func NewRealtimeEvent(name string, payload interface{}, room string) *RealtimeEvent {
	return &RealtimeEvent{
		ID:        generateEventID(),
		Name:      name,
		Room:      room,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// UserRoom is the room every session of a user listens on
func UserRoom(userID string) string {
	return "user:" + userID
}

func generateEventID() string {
	return time.Now().Format("20060102150405") + "-" + randomString(8)
}

func randomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		return time.Now().Format("150405.000")
	}
	return hex.EncodeToString(bytes)[:length]
}
