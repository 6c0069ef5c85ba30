// Package notify delivers out-of-band security notifications to users,
// e.g. "all your sessions were revoked" after refresh token reuse.
package notify

import (
	"context"
	"log"
)

// Notifier sends a security notification to a user. Delivery is best-effort;
// callers do not branch on failure.
type Notifier interface {
	NotifySecurityAlert(ctx context.Context, userID, email, subject, body string)
}

// LogNotifier writes notifications to the process log. It stands in for a
// real mail or push channel in development and tests.
type LogNotifier struct{}

// NewLogNotifier returns a Notifier backed by the standard logger.
func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

// NotifySecurityAlert logs the notification.
func (n *LogNotifier) NotifySecurityAlert(_ context.Context, userID, email, subject, body string) {
	log.Printf("notify: security alert user=%s email=%s subject=%q body=%q", userID, email, subject, body)
}
