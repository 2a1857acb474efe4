package session

import (
	"sync"
	"time"
)

type NavigationKind string

const (
	NavigateExternal NavigationKind = "external"
	NavigateOrder    NavigationKind = "order"
)

type Navigation struct {
	Kind   NavigationKind `json:"kind"`
	Target string         `json:"target"`
	At     time.Time      `json:"at"`
}

// Outbox queues navigations for the UI to perform. It implements
// checkout.Navigator.
type Outbox struct {
	mu      sync.Mutex
	pending []Navigation
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Redirect(url string) {
	o.push(Navigation{Kind: NavigateExternal, Target: url})
}

func (o *Outbox) ShowOrder(recordID string) {
	o.push(Navigation{Kind: NavigateOrder, Target: "/orders/" + recordID})
}

func (o *Outbox) push(n Navigation) {
	n.At = time.Now()
	o.mu.Lock()
	o.pending = append(o.pending, n)
	o.mu.Unlock()
}

// Pop removes and returns the oldest pending navigation.
func (o *Outbox) Pop() (Navigation, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.pending) == 0 {
		return Navigation{}, false
	}
	n := o.pending[0]
	o.pending = o.pending[1:]
	return n, true
}
