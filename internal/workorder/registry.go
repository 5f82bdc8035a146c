package workorder

import (
	"sync"
	"time"

	"github.com/pitabwire/workdesk/internal/config"
	"github.com/pitabwire/workdesk/internal/observability"
	"github.com/pitabwire/workdesk/model"
)

// BuildFunc creates the engine for a session seen for the first time.
type BuildFunc func(s *model.Session) (*Engine, error)

// Registry keeps one Engine per session key so a browser session keeps its
// collection across requests. Engines idle longer than the TTL are dropped;
// when full, the least recently used engine is evicted.
type Registry struct {
	build      BuildFunc
	idleTTL    time.Duration
	maxEntries int
	metrics    *observability.Metrics
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	engine   *Engine
	lastUsed time.Time
}

// NewRegistry creates a Registry. metrics may be nil.
func NewRegistry(cfg config.SessionConfig, build BuildFunc, metrics *observability.Metrics) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	return &Registry{
		build:      build,
		idleTTL:    cfg.IdleTTL,
		maxEntries: cfg.MaxEntries,
		metrics:    metrics,
		now:        time.Now,
		entries:    make(map[string]*registryEntry),
	}
}

// Engine returns the engine of s, building it on first use.
func (r *Registry) Engine(s *model.Session) (*Engine, error) {
	key := s.Key()
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[key]; ok && now.Sub(entry.lastUsed) < r.idleTTL {
		entry.lastUsed = now
		return entry.engine, nil
	}

	engine, err := r.build(s)
	if err != nil {
		return nil, err
	}

	r.sweepLocked(now)
	if len(r.entries) >= r.maxEntries {
		r.evictOldestLocked()
	}
	r.entries[key] = &registryEntry{engine: engine, lastUsed: now}
	r.metrics.SetActiveSessions(len(r.entries))
	return engine, nil
}

// Drop forgets the engine of s.
func (r *Registry) Drop(s *model.Session) {
	r.mu.Lock()
	delete(r.entries, s.Key())
	r.metrics.SetActiveSessions(len(r.entries))
	r.mu.Unlock()
}

// Sweep drops idle engines.
func (r *Registry) Sweep() {
	r.mu.Lock()
	r.sweepLocked(r.now())
	r.metrics.SetActiveSessions(len(r.entries))
	r.mu.Unlock()
}

// Len reports the number of cached engines.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) sweepLocked(now time.Time) {
	for k, e := range r.entries {
		if now.Sub(e.lastUsed) >= r.idleTTL {
			delete(r.entries, k)
		}
	}
}

func (r *Registry) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for k, e := range r.entries {
		if oldestKey == "" || e.lastUsed.Before(oldest) {
			oldestKey, oldest = k, e.lastUsed
		}
	}
	delete(r.entries, oldestKey)
}
