// Package notify delivers operator-facing messages about tickets. Only the
// triggering contract matters to callers; transport is SMTP when configured,
// the log otherwise.
package notify

import "context"

// Notifier sends one message. Implementations must return a non-nil error
// whenever delivery is not confirmed, because callers treat a nil return as
// the commit point for at-most-once notification flags.
type Notifier interface {
	SendImmediate(ctx context.Context, to, subject, body string) error
}
