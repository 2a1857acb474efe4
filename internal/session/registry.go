package session

import (
	"context"
	"sync"
	"time"
)

// SweepInterval is how often Run looks for idle storefronts.
const SweepInterval = time.Minute

type entry struct {
	sf       *Storefront
	lastSeen time.Time
}

// Registry owns the storefronts of all live sessions. Storefronts not used
// for IdleTTL are evicted by Sweep.
type Registry struct {
	mu       sync.Mutex
	deps     Dependencies
	sessions map[string]*entry
	idleTTL  time.Duration
	now      func() time.Time
}

func NewRegistry(deps Dependencies) *Registry {
	return &Registry{
		deps:     deps,
		sessions: make(map[string]*entry),
		idleTTL:  deps.IdleTTL,
		now:      time.Now,
	}
}

// Get returns the storefront for id, creating and loading it on first use.
// A load failure is reported but the storefront is still usable.
func (r *Registry) Get(ctx context.Context, id string) (*Storefront, error) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok {
		e = &entry{sf: New(id, r.deps)}
		r.sessions[id] = e
	}
	e.lastSeen = r.now()
	sf := e.sf
	r.mu.Unlock()

	return sf, sf.Load(ctx)
}

// Remove forgets the storefront for id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts storefronts idle for longer than IdleTTL and returns how many
// were dropped. Persisted state is left to the state store's own expiry.
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Run sweeps every SweepInterval until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	if r.idleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.Sweep(); n > 0 && r.deps.Log != nil {
				r.deps.Log.WithField("evicted", n).Debug("evicted idle storefronts")
			}
		case <-ctx.Done():
			return
		}
	}
}
