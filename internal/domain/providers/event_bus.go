package providers

import (
	"context"

	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to realtime events
type EventBus interface {
	// Publish publishes an event to all subscribers of a channel
	Publish(ctx context.Context, channel string, event *entities.RealtimeEvent) error

	// Subscribe subscribes to events on a channel until ctx is done
	Subscribe(ctx context.Context, channel string) (<-chan *entities.RealtimeEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelBroadcast receives events published without a room
	EventChannelBroadcast = "broadcast"

	// EventChannelRoomPrefix is the prefix for room channels
	EventChannelRoomPrefix = "room:"
)

// GetRoomChannel returns the bus channel for a room
func GetRoomChannel(room string) string {
	if room == "" {
		return EventChannelBroadcast
	}
	return EventChannelRoomPrefix + room
}
