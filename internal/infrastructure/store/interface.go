package store

import "context"

// EventLog records storefront activity events.
type EventLog interface {
	Append(ctx context.Context, aggregateID, aggregateType, eventType string, data any) (*Event, error)
	GetEvents(ctx context.Context, aggregateID string) ([]Event, error)
}

// Publisher forwards appended events to a broker.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// StateStore persists per-session client state under well-known keys.
// Writes are last-write-wins.
type StateStore interface {
	// Load decodes the value stored under key into v. It reports false when
	// nothing is stored.
	Load(ctx context.Context, sessionID, key string, v any) (bool, error)
	Save(ctx context.Context, sessionID, key string, v any) error
	Delete(ctx context.Context, sessionID, key string) error
}

// Persisted client state keys.
const (
	KeyCart        = "technest.cart"
	KeyBillingForm = "technest.billing"
)
