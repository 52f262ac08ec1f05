package breaker

import (
	"sort"
	"sync"
)

// Registry holds one breaker per failure category so a degraded query type
// does not starve unrelated ones. Process-wide, safe for concurrent use;
// injected into components rather than referenced as a global.
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	breakers map[string]*Breaker
}

// NewRegistry creates a registry; zero-value config fields fall back to
// DefaultConfig.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for a category, creating it on first use.
func (r *Registry) Get(category string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[category]
	if !ok {
		b = NewBreaker(category, r.cfg)
		r.breakers[category] = b
	}
	return b
}

// Do runs fn under the category's breaker.
func (r *Registry) Do(category string, fn func() error) error {
	return r.Get(category).Do(fn)
}

// Snapshots returns all breaker states sorted by category for the ops
// surface.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Snapshot, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, b.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}
