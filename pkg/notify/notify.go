// Package notify holds the single-slot notification store surfaced next
// to the swap form. Long-running flows keep one notification and update
// it in place as they progress.
package notify

import (
	"sync"

	"github.com/google/uuid"
)

// Variant selects the notification's tone.
type Variant string

const (
	VariantSuccess Variant = "success"
	VariantError   Variant = "error"
	VariantInfo    Variant = "info"
	VariantLoading Variant = "loading"
	VariantWarning Variant = "warning"
	VariantBlocked Variant = "blocked"
)

// Notification is one message with an optional link to an explorer or
// scan page.
type Notification struct {
	ID      string
	Variant Variant
	Message string
	Link    string
}

// Notifier stores at most one notification. Pushing a new one replaces
// whatever is showing; updating an existing id rewrites it in place
// without resetting its identity.
type Notifier struct {
	mu          sync.Mutex
	current     *Notification
	subscribers []func(*Notification)
}

func New() *Notifier {
	return &Notifier{}
}

// Subscribe registers a callback invoked on every change with the current
// notification, or nil when cleared. The callback runs with the store's
// lock held and must not call back into the notifier.
func (n *Notifier) Subscribe(fn func(*Notification)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subscribers = append(n.subscribers, fn)
}

// Push displays a new notification, replacing the current one, and
// returns its id for later updates.
func (n *Notifier) Push(variant Variant, message, link string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = &Notification{
		ID:      uuid.NewString(),
		Variant: variant,
		Message: message,
		Link:    link,
	}
	n.broadcast()
	return n.current.ID
}

// Update rewrites the notification with the given id. A mismatched id is
// ignored: the flow that owned it has already been superseded.
func (n *Notifier) Update(id string, variant Variant, message, link string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil || n.current.ID != id {
		return
	}
	n.current.Variant = variant
	n.current.Message = message
	if link != "" {
		n.current.Link = link
	}
	n.broadcast()
}

// Clear dismisses the current notification.
func (n *Notifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return
	}
	n.current = nil
	n.broadcast()
}

// Current returns a copy of the showing notification, or nil.
func (n *Notifier) Current() *Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return nil
	}
	c := *n.current
	return &c
}

func (n *Notifier) broadcast() {
	for _, fn := range n.subscribers {
		if n.current == nil {
			fn(nil)
		} else {
			c := *n.current
			fn(&c)
		}
	}
}
