// Package capability maps a session's role to the capability hints that
// decide which dashboard controls are offered.
package capability

import (
	"sync"
	"time"

	"github.com/pitabwire/workdesk/internal/observability"
	"github.com/pitabwire/workdesk/model"
)

type cacheEntry struct {
	caps    model.CapabilitySet
	expires time.Time
}

// Resolver implements model.CapabilityResolver with an in-memory cache
// keyed by role.
type Resolver struct {
	evaluator model.PolicyEvaluator
	ttl       time.Duration
	metrics   *observability.Metrics
	now       func() time.Time

	mu    sync.RWMutex
	cache map[model.Role]cacheEntry
}

// NewResolver creates a Resolver. metrics may be nil.
func NewResolver(evaluator model.PolicyEvaluator, ttl time.Duration, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		evaluator: evaluator,
		ttl:       ttl,
		metrics:   metrics,
		now:       time.Now,
		cache:     make(map[model.Role]cacheEntry),
	}
}

// Resolve returns the capability set for the session's role. Results are
// cached for the configured TTL. Callers must not modify the returned set.
func (r *Resolver) Resolve(s *model.Session) (model.CapabilitySet, error) {
	r.mu.RLock()
	if entry, ok := r.cache[s.Role]; ok && r.now().Before(entry.expires) {
		r.mu.RUnlock()
		r.metrics.RecordCapabilityCacheHit()
		return entry.caps, nil
	}
	r.mu.RUnlock()
	r.metrics.RecordCapabilityCacheMiss()

	caps, err := r.evaluator.ResolveCapabilities(s)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[s.Role] = cacheEntry{caps: caps, expires: r.now().Add(r.ttl)}
	r.mu.Unlock()

	return caps, nil
}

// Reload re-reads the policy and drops every cached entry.
func (r *Resolver) Reload() error {
	if err := r.evaluator.Sync(); err != nil {
		return err
	}
	r.mu.Lock()
	r.cache = make(map[model.Role]cacheEntry)
	r.mu.Unlock()
	return nil
}
