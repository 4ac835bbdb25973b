package events

import (
	"context"

	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/domain/providers"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/observability"
)

// BusBroadcaster publishes realtime events onto the event bus, where the SSE
// server picks them up per room
type BusBroadcaster struct {
	bus providers.EventBus
}

// NewBusBroadcaster creates a broadcaster over an event bus
func NewBusBroadcaster(bus providers.EventBus) *BusBroadcaster {
	return &BusBroadcaster{bus: bus}
}

// Publish sends the event to the room's channel. Failures are logged only.
func (b *BusBroadcaster) Publish(ctx context.Context, event string, payload interface{}, room string) {
	realtime := entities.NewRealtimeEvent(event, payload, room)
	if err := b.bus.Publish(ctx, providers.GetRoomChannel(room), realtime); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("event", event).
			Str("room", room).
			Msg("realtime publish failed")
	}
}

// NoopBroadcaster drops events. Used when Redis is disabled.
type NoopBroadcaster struct{}

// Publish logs the event at debug level and discards it
func (NoopBroadcaster) Publish(ctx context.Context, event string, _ interface{}, room string) {
	observability.LoggerFromContext(ctx).Debug().Str("event", event).Str("room", room).Msg("realtime disabled, event dropped")
}
