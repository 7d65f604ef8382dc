package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/tradewire/api/schemas"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// countingStore wraps MemoryStore and counts reads.
type countingStore struct {
	*MemoryStore
	reads atomic.Int32

	// block, when set, holds every read until released. Used to provoke
	// concurrent misses.
	block chan struct{}
}

func (c *countingStore) Latest(ctx context.Context, platform schemas.Platform) (*schemas.Session, error) {
	c.reads.Add(1)
	if c.block != nil {
		<-c.block
	}
	return c.MemoryStore.Latest(ctx, platform)
}

func (c *countingStore) LatestForUser(ctx context.Context, platform schemas.Platform, email string) (*schemas.Session, error) {
	c.reads.Add(1)
	return c.MemoryStore.LatestForUser(ctx, platform, email)
}

func seededStore(t *testing.T) *countingStore {
	t.Helper()
	store := &countingStore{MemoryStore: NewMemoryStore()}
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(context.Background(), &schemas.Session{
		Platform:   schemas.PlatformMarketInOut,
		UserEmail:  "a@x.com",
		Fields:     map[string]string{"ASPSESSIONIDUSER": "def"},
		CapturedAt: base,
	}))
	require.NoError(t, store.Save(context.Background(), &schemas.Session{
		Platform:   schemas.PlatformMarketInOut,
		Fields:     map[string]string{"ASPSESSIONIDXYZ": "abc"},
		CapturedAt: base.Add(time.Minute),
	}))
	return store
}

func TestCacheTTL(t *testing.T) {
	t.Run("should resolve once within the freshness window", func(t *testing.T) {
		store := seededStore(t)
		cache := NewCache(store, 5*time.Minute, zap.NewNop())

		first, err := cache.Get(context.Background(), schemas.PlatformMarketInOut)
		require.NoError(t, err)
		second, err := cache.Get(context.Background(), schemas.PlatformMarketInOut)
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.EqualValues(t, 1, store.reads.Load())
	})

	t.Run("should re-resolve after the TTL elapses", func(t *testing.T) {
		store := seededStore(t)
		cache := NewCache(store, 5*time.Minute, zap.NewNop())

		now := time.Now()
		cache.now = func() time.Time { return now }

		_, err := cache.Get(context.Background(), schemas.PlatformMarketInOut)
		require.NoError(t, err)

		// Advance simulated time past the TTL.
		cache.now = func() time.Time { return now.Add(5*time.Minute + time.Second) }

		_, err = cache.Get(context.Background(), schemas.PlatformMarketInOut)
		require.NoError(t, err)
		assert.EqualValues(t, 2, store.reads.Load())
	})
}

func TestCacheKeyIsolation(t *testing.T) {
	t.Run("should keep platform and user entries distinct", func(t *testing.T) {
		store := seededStore(t)
		cache := NewCache(store, 5*time.Minute, zap.NewNop())

		platformLevel, err := cache.Get(context.Background(), schemas.PlatformMarketInOut)
		require.NoError(t, err)
		userLevel, err := cache.GetForUser(context.Background(), schemas.PlatformMarketInOut,
			UserCredentials{Email: "a@x.com", Password: "p"})
		require.NoError(t, err)

		assert.NotEqual(t, platformLevel.ID, userLevel.ID)
		assert.EqualValues(t, 2, store.reads.Load())
	})

	t.Run("should empty both entries on Clear", func(t *testing.T) {
		store := seededStore(t)
		cache := NewCache(store, 5*time.Minute, zap.NewNop())

		_, err := cache.Get(context.Background(), schemas.PlatformMarketInOut)
		require.NoError(t, err)
		_, err = cache.GetForUser(context.Background(), schemas.PlatformMarketInOut,
			UserCredentials{Email: "a@x.com"})
		require.NoError(t, err)

		cache.Clear()

		_, err = cache.Get(context.Background(), schemas.PlatformMarketInOut)
		require.NoError(t, err)
		_, err = cache.GetForUser(context.Background(), schemas.PlatformMarketInOut,
			UserCredentials{Email: "a@x.com"})
		require.NoError(t, err)
		assert.EqualValues(t, 4, store.reads.Load())
	})
}

func TestCacheMiss(t *testing.T) {
	t.Run("should wrap ErrNoSession with platform context", func(t *testing.T) {
		cache := NewCache(NewMemoryStore(), 0, zap.NewNop())

		_, err := cache.Get(context.Background(), schemas.PlatformTradingView)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoSession)
		assert.Contains(t, err.Error(), "tradingview")
	})

	t.Run("should name the user in scoped miss errors", func(t *testing.T) {
		cache := NewCache(NewMemoryStore(), 0, zap.NewNop())

		_, err := cache.GetForUser(context.Background(), schemas.PlatformMarketInOut,
			UserCredentials{Email: "b@x.com"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "b@x.com")
	})
}

func TestCacheSingleflight(t *testing.T) {
	t.Run("should collapse concurrent misses into one store read", func(t *testing.T) {
		store := seededStore(t)
		store.block = make(chan struct{})
		cache := NewCache(store, 5*time.Minute, zap.NewNop())

		const callers = 8
		var wg sync.WaitGroup
		results := make([]*schemas.Session, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				s, err := cache.Get(context.Background(), schemas.PlatformMarketInOut)
				assert.NoError(t, err)
				results[i] = s
			}(i)
		}

		// Let every caller reach the cache before releasing the store.
		time.Sleep(20 * time.Millisecond)
		close(store.block)
		wg.Wait()

		assert.EqualValues(t, 1, store.reads.Load())
		for _, s := range results {
			assert.Same(t, results[0], s)
		}
	})
}
