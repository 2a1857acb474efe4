// Package notify keeps the transient, dismissible notifications shown to a
// storefront session.
package notify

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/technest/internal/backend"
	"github.com/example/technest/internal/domain/cart"
	"github.com/example/technest/internal/domain/checkout"
	"github.com/example/technest/internal/metrics"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// MaxNotifications bounds a center; the oldest entries are dropped first.
const MaxNotifications = 20

type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

type Center struct {
	mu      sync.Mutex
	items   []Notification
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewCenter(m *metrics.Metrics) *Center {
	return &Center{metrics: m, now: time.Now}
}

func (c *Center) Push(level Level, message string) Notification {
	n := Notification{
		ID:        uuid.New().String(),
		Level:     level,
		Message:   message,
		CreatedAt: c.now(),
	}
	c.mu.Lock()
	c.items = append(c.items, n)
	if over := len(c.items) - MaxNotifications; over > 0 {
		c.items = append([]Notification(nil), c.items[over:]...)
	}
	c.mu.Unlock()
	c.metrics.Notification(string(level))
	return n
}

func (c *Center) Success(message string) Notification {
	return c.Push(LevelSuccess, message)
}

func (c *Center) Info(message string) Notification {
	return c.Push(LevelInfo, message)
}

// Error pushes the user-facing message for err. Nil errors are ignored.
func (c *Center) Error(err error) (Notification, bool) {
	if err == nil {
		return Notification{}, false
	}
	return c.Push(LevelError, Message(err)), true
}

// Dismiss removes the notification with id and reports whether it existed.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// List returns the notifications, oldest first.
func (c *Center) List() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification{}, c.items...)
}

// Message maps an error to the text shown to the user. Backend-provided
// messages win over the generic wording of each failure class.
func Message(err error) string {
	switch {
	case errors.Is(err, checkout.ErrMissingField):
		return "Please fill in all required fields."
	case errors.Is(err, checkout.ErrMissingReference):
		return "Please complete the shipping step before verifying payment."
	case errors.Is(err, checkout.ErrInitializationFailed):
		return backend.MessageOf(err, "We couldn't start your checkout. Please try again.")
	case errors.Is(err, checkout.ErrVerificationFailed):
		if errors.Is(err, backend.ErrReferenceExhausted) {
			return "Your payment session has expired. Please start checkout again."
		}
		return backend.MessageOf(err, "We couldn't verify your payment.")
	case errors.Is(err, checkout.ErrCancellationFailed):
		return backend.MessageOf(err, "We couldn't cancel this order.")
	case errors.Is(err, checkout.ErrNotCancellable):
		return "Only pending orders can be cancelled."
	case errors.Is(err, checkout.ErrNotResumable):
		return "Only pending orders can be resumed."
	case errors.Is(err, checkout.ErrRecordNotFound):
		return "We couldn't find that order."
	case errors.Is(err, checkout.ErrNoAuthorizationURL):
		return "This payment method doesn't need a redirect."
	case errors.Is(err, cart.ErrInvalidProduct), errors.Is(err, cart.ErrInvalidQuantity):
		return "That item can't be added to your cart."
	}
	var syncErr *cart.SyncError
	if errors.As(err, &syncErr) {
		return backend.MessageOf(err, "We couldn't update your cart. Please try again.")
	}
	return backend.MessageOf(err, backend.GenericMessage)
}
