// Package notify dispatches raw password-reset tokens out-of-band. Delivery
// (mail, SMS) is an external collaborator; this package defines the seam and a
// log-backed implementation for local use.
package notify

import (
	"context"
	"log"
)

// Notifier delivers a raw reset token to the account's address. The raw value
// exists only in flight; storage keeps its hash.
type Notifier interface {
	SendPasswordReset(ctx context.Context, email, rawToken string) error
}

// LogNotifier writes the dispatch to the process log. Logs the raw token, so
// not for production use.
type LogNotifier struct{}

// NewLogNotifier returns a Notifier backed by the standard logger.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// SendPasswordReset logs the token for local retrieval. Never fails.
func (n *LogNotifier) SendPasswordReset(_ context.Context, email, rawToken string) error {
	log.Printf("notify: password reset for %s token=%s", email, rawToken)
	return nil
}
