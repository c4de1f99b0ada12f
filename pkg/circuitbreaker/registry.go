package circuitbreaker

import "sync"

// Registry hands out one breaker per key, created lazily with a shared
// config. Keys are typically destination hosts.
type Registry struct {
	mu   sync.Mutex
	cfg  Config
	pool map[string]*Breaker
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:  cfg.withDefaults(),
		pool: make(map[string]*Breaker),
	}
}

// Get returns the breaker for key, creating it on first use.
func (r *Registry) Get(key string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.pool[key]
	if !ok {
		b = New(r.cfg)
		r.pool[key] = b
	}
	return b
}

// Stats counts breakers by state.
type Stats struct {
	Total    int
	Open     int
	HalfOpen int
	Closed   int
}

// Stats returns a snapshot over all breakers.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{Total: len(r.pool)}
	for _, b := range r.pool {
		switch b.State() {
		case Open:
			stats.Open++
		case HalfOpen:
			stats.HalfOpen++
		default:
			stats.Closed++
		}
	}
	return stats
}

// Reset closes every breaker.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.pool {
		b.Reset()
	}
}
