// Package bridge fans a watchlist operation out to both platforms and
// gathers per-platform outcomes: the settle-all join never fails the whole
// operation because one leg failed.
package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xkilldash9x/tradewire/api/schemas"
	"github.com/xkilldash9x/tradewire/internal/httpclient"
	"github.com/xkilldash9x/tradewire/internal/platform/marketinout"
	"github.com/xkilldash9x/tradewire/internal/platform/tradingview"
	"github.com/xkilldash9x/tradewire/internal/session"
	"go.uber.org/zap"
)

// Leg is the outcome of one platform's side of an operation.
type Leg struct {
	Platform     schemas.Platform `json:"platform"`
	OK           bool             `json:"ok"`
	Message      string           `json:"message,omitempty"`
	Error        string           `json:"error,omitempty"`
	NeedsRefresh bool             `json:"needs_refresh,omitempty"`
}

// Outcome is the gathered result of a dual-platform operation. OK means at
// least one leg succeeded; per-leg detail is always preserved so the caller
// can tell the user exactly which platform needs attention.
type Outcome struct {
	OK      bool   `json:"ok"`
	Legs    []Leg  `json:"legs"`
	Message string `json:"message"`
}

// Config carries the per-platform endpoints and list ids for one bridge.
type Config struct {
	MarketInOutBaseURL string
	TradingViewBaseURL string
	MarketInOutListID  string
	TradingViewListID  string
	HTTP               httpclient.Config
}

// Bridge resolves sessions through the cache and executes watchlist
// operations against both platforms in parallel.
type Bridge struct {
	cfg   Config
	cache *session.Cache
	log   *zap.Logger
}

// New creates a bridge over the session cache.
func New(cfg Config, cache *session.Cache, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{cfg: cfg, cache: cache, log: logger.Named("bridge")}
}

// AddSymbol adds a symbol to the configured watch lists on both platforms.
func (b *Bridge) AddSymbol(ctx context.Context, symbol string) Outcome {
	return b.fanOut(ctx, "added", symbol,
		func(ctx context.Context, c *marketinout.Client) (*schemas.Response, error) {
			return c.AddToWatchlist(ctx, b.cfg.MarketInOutListID, symbol)
		},
		func(ctx context.Context, c *tradingview.Client) (*schemas.Response, error) {
			return c.AddSymbol(ctx, b.cfg.TradingViewListID, symbol)
		})
}

// RemoveSymbol removes a symbol from the configured watch lists on both
// platforms.
func (b *Bridge) RemoveSymbol(ctx context.Context, symbol string) Outcome {
	return b.fanOut(ctx, "removed", symbol,
		func(ctx context.Context, c *marketinout.Client) (*schemas.Response, error) {
			return c.RemoveFromWatchlist(ctx, b.cfg.MarketInOutListID, symbol)
		},
		func(ctx context.Context, c *tradingview.Client) (*schemas.Response, error) {
			return c.RemoveSymbol(ctx, b.cfg.TradingViewListID, symbol)
		})
}

// Lists is the gathered watch list inventory from both platforms.
type Lists struct {
	OK          bool                    `json:"ok"`
	Legs        []Leg                   `json:"legs"`
	MarketInOut []marketinout.Watchlist `json:"marketinout,omitempty"`
	TradingView []tradingview.Watchlist `json:"tradingview,omitempty"`
}

// Watchlists fetches the named watch lists from both platforms in parallel,
// with the same settle-all semantics as the symbol operations.
func (b *Bridge) Watchlists(ctx context.Context) Lists {
	legs := make([]Leg, 2)
	var mioResp, tvResp *schemas.Response
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		legs[0] = b.runMarketInOut(ctx, func(ctx context.Context, c *marketinout.Client) (*schemas.Response, error) {
			r, err := c.Watchlists(ctx)
			mioResp = r
			return r, err
		})
	}()
	go func() {
		defer wg.Done()
		legs[1] = b.runTradingView(ctx, func(ctx context.Context, c *tradingview.Client) (*schemas.Response, error) {
			r, err := c.Watchlists(ctx)
			tvResp = r
			return r, err
		})
	}()
	wg.Wait()

	out := Lists{OK: legs[0].OK || legs[1].OK, Legs: legs}
	if legs[0].OK && mioResp != nil {
		out.MarketInOut = marketinout.ParseWatchlists(mioResp.Body)
	}
	if legs[1].OK && tvResp != nil {
		out.TradingView = tradingview.ParseWatchlists(tvResp.Data)
	}
	b.log.Info("watch list inventory settled",
		zap.Int("marketinout_lists", len(out.MarketInOut)),
		zap.Int("tradingview_lists", len(out.TradingView)))
	return out
}

func (b *Bridge) fanOut(
	ctx context.Context,
	verb, symbol string,
	mioOp func(context.Context, *marketinout.Client) (*schemas.Response, error),
	tvOp func(context.Context, *tradingview.Client) (*schemas.Response, error),
) Outcome {
	legs := make([]Leg, 2)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		legs[0] = b.runMarketInOut(ctx, mioOp)
	}()
	go func() {
		defer wg.Done()
		legs[1] = b.runTradingView(ctx, tvOp)
	}()
	wg.Wait()

	out := Outcome{
		OK:      legs[0].OK || legs[1].OK,
		Legs:    legs,
		Message: summarize(verb, symbol, legs),
	}
	b.log.Info("dual-platform operation settled",
		zap.String("symbol", symbol),
		zap.Bool("ok", out.OK),
		zap.Bool("marketinout", legs[0].OK),
		zap.Bool("tradingview", legs[1].OK))
	return out
}

func (b *Bridge) runMarketInOut(ctx context.Context, op func(context.Context, *marketinout.Client) (*schemas.Response, error)) Leg {
	leg := Leg{Platform: schemas.PlatformMarketInOut}

	sess, err := b.cache.Get(ctx, schemas.PlatformMarketInOut)
	if err != nil {
		leg.Error = err.Error()
		return leg
	}
	cookie, err := session.ExtractMarketInOutCookie(sess.Fields)
	if err != nil {
		leg.Error = err.Error()
		return leg
	}

	client := marketinout.New(b.cfg.MarketInOutBaseURL, cookie, b.cfg.HTTP, b.log)
	resp, err := op(ctx, client)
	if err != nil {
		leg.Error = err.Error()
		return leg
	}

	switch {
	case !resp.OK:
		leg.Error = resp.Error.Message
		leg.NeedsRefresh = resp.NeedsRefresh()
	case resp.Type == schemas.ResponseHTML && marketinout.IsLoginPage(resp.Body):
		// MarketInOut answers an expired session with its login page and
		// status 200, so the refresh signal has to come from the body.
		leg.Error = "session expired"
		leg.NeedsRefresh = true
	default:
		leg.OK = true
		leg.Message = marketinout.ExtractMessage(resp.Body)
	}
	return leg
}

func (b *Bridge) runTradingView(ctx context.Context, op func(context.Context, *tradingview.Client) (*schemas.Response, error)) Leg {
	leg := Leg{Platform: schemas.PlatformTradingView}

	sess, err := b.cache.Get(ctx, schemas.PlatformTradingView)
	if err != nil {
		leg.Error = err.Error()
		return leg
	}
	creds, err := session.ExtractTradingViewCredentials(sess.Fields)
	if err != nil {
		leg.Error = err.Error()
		return leg
	}

	client := tradingview.New(b.cfg.TradingViewBaseURL, creds, b.cfg.HTTP, b.log)
	resp, err := op(ctx, client)
	if err != nil {
		leg.Error = err.Error()
		return leg
	}

	if !resp.OK {
		leg.Error = resp.Error.Message
		leg.NeedsRefresh = resp.NeedsRefresh()
		return leg
	}
	leg.OK = true
	return leg
}

// summarize builds the user-facing one-liner for a settled operation.
func summarize(verb, symbol string, legs []Leg) string {
	var ok, failed []Leg
	for _, leg := range legs {
		if leg.OK {
			ok = append(ok, leg)
		} else {
			failed = append(failed, leg)
		}
	}

	switch len(ok) {
	case len(legs):
		names := make([]string, len(ok))
		for i, leg := range ok {
			names[i] = string(leg.Platform)
		}
		return fmt.Sprintf("%s %s on %s", verb, symbol, strings.Join(names, " and "))
	case 0:
		return fmt.Sprintf("%s was not %s: both platforms failed", symbol, verb)
	default:
		detail := "failed"
		if failed[0].NeedsRefresh {
			detail = "session expired"
		}
		return fmt.Sprintf("%s %s on %s only, %s %s",
			verb, symbol, ok[0].Platform, failed[0].Platform, detail)
	}
}
