package providers

import "context"

// NotificationDispatcher delivers a message to a recipient. The boolean
// reports delivery; callers never roll back on false.
type NotificationDispatcher interface {
	Send(ctx context.Context, to, subject, html string) bool
}
