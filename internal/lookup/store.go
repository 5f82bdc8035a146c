package lookup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/workdesk/internal/config"
)

// Store holds encoded lookup lists by key with a TTL.
type Store interface {
	// Get returns the stored value. found is false for a missing or expired
	// key.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

// NewStore builds the Store selected by cfg.Driver. The redis address is
// read from the environment variable named by cfg.AddrEnv.
func NewStore(cfg config.StoreConfig, maxEntries int) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(maxEntries), nil
	case "redis":
		addr := os.Getenv(cfg.AddrEnv)
		if addr == "" {
			return nil, fmt.Errorf("lookup: environment variable %s is empty", cfg.AddrEnv)
		}
		client := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.DB})
		return NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("lookup: unknown store driver %q", cfg.Driver)
	}
}

// --- MemoryStore ---

// MemoryStore is an in-process Store. Once it holds maxEntries keys, expired
// entries are swept before each insert.
type MemoryStore struct {
	maxEntries int
	now        func() time.Time

	mu      sync.RWMutex
	entries map[string]memEntry
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates a MemoryStore. A non-positive maxEntries means 1000.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemoryStore{
		maxEntries: maxEntries,
		now:        time.Now,
		entries:    make(map[string]memEntry),
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxEntries {
		s.evictExpired()
		if len(s.entries) >= s.maxEntries {
			return fmt.Errorf("lookup: memory store full (%d entries)", s.maxEntries)
		}
	}
	s.entries[key] = memEntry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}

// Len returns the number of entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// evictExpired must be called with mu held.
func (s *MemoryStore) evictExpired() {
	now := s.now()
	for k, v := range s.entries {
		if !now.Before(v.expiresAt) {
			delete(s.entries, k)
		}
	}
}

// --- RedisStore ---

// RedisStore is a Store backed by Redis string keys with expiry.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return raw, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// HealthCheck pings Redis.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
