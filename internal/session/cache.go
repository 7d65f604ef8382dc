package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/tradewire/api/schemas"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is the freshness window for cached session resolutions.
const DefaultTTL = 5 * time.Minute

// Cache sits in front of the session store and avoids redundant reads for
// repeatedly requested sessions. Expiry is lazy: an entry is checked against
// its TTL on every read and evicted when stale. Concurrent misses for the
// same key are collapsed into a single store read via singleflight.
type Cache struct {
	store Store
	ttl   time.Duration
	log   *zap.Logger

	mu      sync.Mutex
	entries map[string]cacheEntry
	group   singleflight.Group

	// now is swapped out by tests to simulate TTL expiry.
	now func() time.Time
}

type cacheEntry struct {
	session  *schemas.Session
	storedAt time.Time
}

// NewCache creates a cache over the store. ttl <= 0 selects DefaultTTL.
func NewCache(store Store, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:   store,
		ttl:     ttl,
		log:     logger.Named("session_cache"),
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the freshest cached session for the platform, reading through
// to the store on a miss or an expired entry.
func (c *Cache) Get(ctx context.Context, platform schemas.Platform) (*schemas.Session, error) {
	return c.resolve(ctx, string(platform), func(ctx context.Context) (*schemas.Session, error) {
		s, err := c.store.Latest(ctx, platform)
		if err != nil {
			return nil, fmt.Errorf("no session found for platform %s: %w", platform, err)
		}
		return s, nil
	})
}

// GetForUser is Get scoped to a specific account. Platform-level and
// user-level entries use distinct keys and coexist without collision.
func (c *Cache) GetForUser(ctx context.Context, platform schemas.Platform, user UserCredentials) (*schemas.Session, error) {
	key := string(platform) + ":" + user.Email
	return c.resolve(ctx, key, func(ctx context.Context) (*schemas.Session, error) {
		s, err := c.store.LatestForUser(ctx, platform, user.Email)
		if err != nil {
			return nil, fmt.Errorf("no session found for platform %s and user %s: %w", platform, user.Email, err)
		}
		return s, nil
	})
}

// Clear empties the entire cache. There is no per-key invalidation: the key
// cardinality is bounded by platforms times active users, so a full clear
// is cheap.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

func (c *Cache) resolve(ctx context.Context, key string, fetch func(context.Context) (*schemas.Session, error)) (*schemas.Session, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if c.now().Sub(e.storedAt) < c.ttl {
			c.mu.Unlock()
			return e.session, nil
		}
		delete(c.entries, key)
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		s, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = cacheEntry{session: s, storedAt: c.now()}
		c.mu.Unlock()
		c.log.Debug("session resolved", zap.String("key", key), zap.String("session_id", s.ID))
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*schemas.Session), nil
}
