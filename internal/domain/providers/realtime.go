package providers

import "context"

// RealtimeBroadcaster pushes events to connected clients. It is a side
// channel: implementations log failures and never return them.
type RealtimeBroadcaster interface {
	// Publish sends an event to a room, or to everyone when room is empty
	Publish(ctx context.Context, event string, payload interface{}, room string)
}
