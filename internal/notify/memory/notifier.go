// Package memory records notifications in-memory for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/planetbun/scanova/internal/audit"
)

// Notifier keeps every notification it receives.
type Notifier struct {
	mu    sync.Mutex
	notes []audit.Notification
}

// NewNotifier creates an in-memory notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Notify records the notification.
func (n *Notifier) Notify(_ context.Context, note audit.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
	return nil
}

// Sent returns a copy of the recorded notifications.
func (n *Notifier) Sent() []audit.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]audit.Notification(nil), n.notes...)
}
