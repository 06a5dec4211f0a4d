// Package noop discards notifications for deployments without a delivery
// channel.
package noop

import (
	"context"

	"github.com/planetbun/scanova/internal/audit"
)

// Notifier accepts and discards every notification.
type Notifier struct{}

// NewNotifier creates a no-op notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Notify discards the notification.
func (*Notifier) Notify(context.Context, audit.Notification) error {
	return nil
}
