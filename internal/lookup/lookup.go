// Package lookup caches the technician, asset and spare-part lists that
// populate pickers and kanban drop zones.
package lookup

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/workdesk/internal/observability"
	"github.com/pitabwire/workdesk/internal/query"
	"github.com/pitabwire/workdesk/model"
)

// Lookup names, used in cache keys and metric labels.
const (
	Technicians = "technicians"
	Assets      = "assets"
	SpareParts  = "spare_parts"
)

// Source fetches the uncached lists.
type Source interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	ListAssets(ctx context.Context) ([]model.Asset, error)
	ListSpareParts(ctx context.Context) ([]model.SparePart, error)
}

// Cache serves lookup lists from a Store, falling back to the Source on a
// miss. Entries are scoped to the subject because the API may filter lists
// by the caller's access. A failing Store never fails a lookup.
type Cache struct {
	store   Store
	source  Source
	prefix  string
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewCache creates a Cache. A non-positive ttl means 5 minutes. metrics may
// be nil.
func NewCache(store Store, source Source, prefix string, ttl time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:   store,
		source:  source,
		prefix:  prefix,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

// Technicians returns the users with role TECHNICIAN.
func (c *Cache) Technicians(ctx context.Context, subject string) ([]model.User, error) {
	return cached(ctx, c, Technicians, subject, func(ctx context.Context) ([]model.User, error) {
		all, err := c.source.ListUsers(ctx)
		if err != nil {
			return nil, err
		}
		techs := make([]model.User, 0, len(all))
		for _, u := range all {
			if u.Role == model.RoleTechnician {
				techs = append(techs, u)
			}
		}
		return techs, nil
	})
}

// Assets returns the assets matching q. An empty q returns all of them.
func (c *Cache) Assets(ctx context.Context, subject, q string) ([]model.Asset, error) {
	assets, err := cached(ctx, c, Assets, subject, c.source.ListAssets)
	if err != nil {
		return nil, err
	}
	return query.SearchAssets(assets, q), nil
}

// SpareParts returns the spare-part inventory.
func (c *Cache) SpareParts(ctx context.Context, subject string) ([]model.SparePart, error) {
	return cached(ctx, c, SpareParts, subject, c.source.ListSpareParts)
}

// Invalidate drops the cached lists of subject.
func (c *Cache) Invalidate(ctx context.Context, subject string) {
	keys := []string{c.key(Technicians, subject), c.key(Assets, subject), c.key(SpareParts, subject)}
	if err := c.store.Delete(ctx, keys...); err != nil {
		observability.RequestLogger(ctx, c.logger).Warn("lookup cache invalidate failed", zap.Error(err))
	}
}

func (c *Cache) key(name, subject string) string {
	return c.prefix + name + ":" + subject
}

func cached[T any](ctx context.Context, c *Cache, name, subject string, fetch func(context.Context) ([]T, error)) ([]T, error) {
	ctx, span := observability.StartSpan(ctx, "lookup."+name, observability.AttrLookup.String(name))
	defer span.End()
	logger := observability.RequestLogger(ctx, c.logger).With(zap.String("lookup", name))
	key := c.key(name, subject)

	raw, found, err := c.store.Get(ctx, key)
	span.SetAttributes(observability.AttrCacheHit.Bool(found))
	if err != nil {
		logger.Warn("lookup cache read failed, using API", zap.Error(err))
	}
	if found {
		var items []T
		if err := json.Unmarshal(raw, &items); err == nil {
			c.metrics.RecordLookupCacheHit(name)
			return items, nil
		}
		logger.Warn("lookup cache entry unreadable, refetching", zap.String("key", key))
	}
	c.metrics.RecordLookupCacheMiss(name)

	items, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}

	data, err := json.Marshal(items)
	if err != nil {
		logger.Warn("lookup cache encode failed", zap.Error(err))
		return items, nil
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		logger.Warn("lookup cache write failed", zap.Error(err))
	}
	return items, nil
}
