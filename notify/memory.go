package notify

import (
	"context"
	"sync"

	"github.com/pedalfleet/courier-ops/core"
)

// MemoryNotifier records notifications instead of delivering them.
type MemoryNotifier struct {
	mu   sync.Mutex
	sent []SentNotification
}

type SentNotification struct {
	Recipient    core.Contact
	Notification core.Notification
}

func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

func (n *MemoryNotifier) Send(_ context.Context, recipient core.Contact, notification core.Notification) error {
	if n == nil {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, SentNotification{
		Recipient:    recipient,
		Notification: notification,
	})
	return nil
}

func (n *MemoryNotifier) Sent() []SentNotification {
	if n == nil {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]SentNotification, len(n.sent))
	copy(out, n.sent)
	return out
}

var _ core.Notifier = (*MemoryNotifier)(nil)
var _ core.Notifier = (*AMQPNotifier)(nil)
