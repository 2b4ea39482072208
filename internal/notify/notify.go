// Package notify holds the transient, toast-style notification produced by every
// mutating operation.
//
// Exactly one notification is visible at a time: showing a new one replaces the
// prior. Each notification expires after a fixed window (3 seconds by default).
package notify

import (
	"log/slog"
	"slices"
	"sync"
	"time"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 3 * time.Second

// Kind is the severity of a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is a single user-facing message.
type Notification struct {
	// ID increases with every notification shown by the same Notifier.
	ID      uint64
	Message string
	Kind    Kind
	ShownAt time.Time
}

// Notifier owns the currently visible notification.
type Notifier struct {
	mu        sync.Mutex
	ttl       time.Duration
	logger    *slog.Logger
	current   *Notification
	timer     *time.Timer
	seq       uint64
	observers map[int]func(Notification)
	nextObs   int
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithTTL overrides the expiry window.
func WithTTL(ttl time.Duration) Option {
	return func(n *Notifier) {
		if ttl > 0 {
			n.ttl = ttl
		}
	}
}

// WithLogger sets the logger notifications are echoed to.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// New creates a Notifier with nothing visible.
func New(opts ...Option) *Notifier {
	n := &Notifier{
		ttl:       DefaultTTL,
		logger:    slog.Default(),
		observers: make(map[int]func(Notification)),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Success shows a success notification.
func (n *Notifier) Success(message string) Notification {
	return n.Show(KindSuccess, message)
}

// Error shows an error notification.
func (n *Notifier) Error(message string) Notification {
	return n.Show(KindError, message)
}

// Show replaces the visible notification and schedules its expiry.
func (n *Notifier) Show(kind Kind, message string) Notification {
	n.mu.Lock()
	n.seq++
	note := Notification{
		ID:      n.seq,
		Message: message,
		Kind:    kind,
		ShownAt: time.Now(),
	}
	n.current = &note
	if n.timer != nil {
		n.timer.Stop()
	}
	id := note.ID
	n.timer = time.AfterFunc(n.ttl, func() { n.expire(id) })
	observers := n.observersLocked()
	n.mu.Unlock()

	if kind == KindError {
		n.logger.Warn("Notification", "kind", kind, "message", message)
	} else {
		n.logger.Debug("Notification", "kind", kind, "message", message)
	}

	for _, fn := range observers {
		fn(note)
	}
	return note
}

// Current returns the visible notification, if any.
func (n *Notifier) Current() (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Notification{}, false
	}
	return *n.current, true
}

// Dismiss hides the visible notification immediately.
func (n *Notifier) Dismiss() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = nil
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

// Subscribe registers fn to be called with every notification shown.
// The returned function removes the observer.
func (n *Notifier) Subscribe(fn func(Notification)) (unsubscribe func()) {
	n.mu.Lock()
	key := n.nextObs
	n.nextObs++
	n.observers[key] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.observers, key)
		n.mu.Unlock()
	}
}

// observersLocked returns the observers in subscription order.
func (n *Notifier) observersLocked() []func(Notification) {
	keys := make([]int, 0, len(n.observers))
	for k := range n.observers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	observers := make([]func(Notification), 0, len(keys))
	for _, k := range keys {
		observers = append(observers, n.observers[k])
	}
	return observers
}

// expire clears the notification with the given id if it is still visible.
// A stale timer firing after a replacement is a no-op.
func (n *Notifier) expire(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current != nil && n.current.ID == id {
		n.current = nil
		n.timer = nil
	}
}
