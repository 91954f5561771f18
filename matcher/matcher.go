// Package matcher defines the intake interface of the external opportunity
// matcher.
//
// The matcher itself, the system that decides which partner sites should
// receive which link, lives outside this codebase. weave only hands it
// freshly tracked content and later consumes the placement instructions it
// writes into the queue.
package matcher

import "context"

// Notifier is the matcher intake hook. Submit callers await it so its
// failure is observable, but the failure never propagates into the
// submission result. The count is logged and forgotten.
type Notifier interface {
	// NotifyContentReady tells the matcher that a tracked content row was
	// created or refreshed. Returns how many opportunities the matcher
	// created in response.
	NotifyContentReady(ctx context.Context, contentID, ownerID string) (int, error)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, contentID, ownerID string) (int, error)

// NotifyContentReady implements Notifier.
func (f NotifierFunc) NotifyContentReady(ctx context.Context, contentID, ownerID string) (int, error) {
	return f(ctx, contentID, ownerID)
}

// Nop returns a Notifier that does nothing. Used when no matcher endpoint
// is configured.
func Nop() Notifier {
	return NotifierFunc(func(context.Context, string, string) (int, error) {
		return 0, nil
	})
}
