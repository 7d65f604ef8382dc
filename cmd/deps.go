package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xkilldash9x/tradewire/internal/bridge"
	"github.com/xkilldash9x/tradewire/internal/httpclient"
	"github.com/xkilldash9x/tradewire/internal/observability"
	"github.com/xkilldash9x/tradewire/internal/session"
)

// newStore builds the session store from config. An empty store URL selects
// the in-memory store, which starts empty and is only useful for dry runs.
func newStore(ctx context.Context) (session.Store, func(), error) {
	if cfg.Store.URL == "" {
		return session.NewMemoryStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Store.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to session store: %w", err)
	}
	store, err := session.NewPostgresStore(ctx, pool, observability.GetLogger())
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}

func httpConfig() httpclient.Config {
	return httpclient.Config{
		Timeout:    cfg.Network.Timeout,
		MaxRetries: cfg.Network.MaxRetries,
		RetryDelay: cfg.Network.RetryDelay,
		RateLimit:  cfg.Network.RateLimit,
		RateBurst:  cfg.Network.RateBurst,
	}
}

func newBridge(ctx context.Context, mioList, tvList string) (*bridge.Bridge, func(), error) {
	store, closeStore, err := newStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	cache := session.NewCache(store, cfg.Cache.TTL, observability.GetLogger())
	b := bridge.New(bridge.Config{
		MarketInOutBaseURL: cfg.Platforms.MarketInOut.BaseURL,
		TradingViewBaseURL: cfg.Platforms.TradingView.BaseURL,
		MarketInOutListID:  mioList,
		TradingViewListID:  tvList,
		HTTP:               httpConfig(),
	}, cache, observability.GetLogger())
	return b, closeStore, nil
}
