// Package tradingview is the TradingView charting-platform client:
// sessionid cookie auth, JSON responses, and chart JWT retrieval.
package tradingview

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/xkilldash9x/tradewire/api/schemas"
	"github.com/xkilldash9x/tradewire/internal/httpclient"
	"github.com/xkilldash9x/tradewire/internal/session"
	"go.uber.org/zap"
)

// TokenPrefix is the base64url-encoded JSON header marker every valid chart
// token starts with.
const TokenPrefix = "eyJ"

// Client talks to TradingView on behalf of one captured session. Safe for
// concurrent use; the only state is the constructor-injected credential.
type Client struct {
	http    *httpclient.Client
	baseURL string
	creds   session.TradingViewCredentials
	log     *zap.Logger
}

// New builds a client around the extracted credentials.
func New(baseURL string, creds session.TradingViewCredentials, cfg httpclient.Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	buildHeaders := func(h http.Header) {
		cookie := "sessionid=" + creds.SessionID
		if creds.SessionIDSign != "" {
			cookie += "; sessionid_sign=" + creds.SessionIDSign
		}
		h.Set("Cookie", cookie)
	}
	return &Client{
		http:    httpclient.New(cfg, buildHeaders, logger),
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		log:     logger.Named("tradingview"),
	}
}

// Get issues an authenticated GET for a site-relative path.
func (c *Client) Get(ctx context.Context, path string) (*schemas.Response, error) {
	return c.http.Get(ctx, c.baseURL+path, httpclient.Options{})
}

// Post issues an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*schemas.Response, error) {
	return c.http.Post(ctx, c.baseURL+path, httpclient.Options{Body: body})
}

// UserID returns the credential's user id, recovering it from the user-info
// endpoint when the captured session did not include one. The stored record
// frequently lacks the id, so this round trip is the normal path, not an
// exception.
func (c *Client) UserID(ctx context.Context) (int64, error) {
	if c.creds.UserID != 0 {
		return c.creds.UserID, nil
	}

	resp, err := c.Get(ctx, "/api/v1/user/")
	if err != nil {
		return 0, err
	}
	if !resp.OK {
		return 0, resp.Error
	}

	id, ok := numericField(resp.JSONMap(), "id")
	if !ok {
		return 0, &schemas.ResponseError{
			Code:    schemas.CodeParseError,
			Message: "no numeric user id in user-info response",
		}
	}
	return id, nil
}

// JWTToken fetches a chart token for the user/chart pair. The token is an
// opaque bearer string; the only structural check is the eyJ prefix.
func (c *Client) JWTToken(ctx context.Context, userID int64, chartID string) (string, error) {
	path := fmt.Sprintf("/chart-token/?user_id=%d&chart_id=%s", userID, chartID)
	resp, err := c.Get(ctx, path)
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", resp.Error
	}

	token, ok := tokenString(resp.Data)
	if !ok {
		return "", &schemas.ResponseError{
			Code:    schemas.CodeParseError,
			Message: "no token string in chart-token response",
		}
	}
	if !strings.HasPrefix(token, TokenPrefix) {
		return "", &schemas.ResponseError{
			Code:    schemas.CodeInvalidToken,
			Message: fmt.Sprintf("token does not start with %q", TokenPrefix),
		}
	}
	return token, nil
}

// AddSymbol appends a symbol to a watchlist.
func (c *Client) AddSymbol(ctx context.Context, watchlistID, symbol string) (*schemas.Response, error) {
	path := fmt.Sprintf("/api/v1/symbols_list/custom/%s/append/", watchlistID)
	return c.Post(ctx, path, []string{symbol})
}

// RemoveSymbol removes a symbol from a watchlist.
func (c *Client) RemoveSymbol(ctx context.Context, watchlistID, symbol string) (*schemas.Response, error) {
	path := fmt.Sprintf("/api/v1/symbols_list/custom/%s/remove/", watchlistID)
	return c.Post(ctx, path, []string{symbol})
}

// Watchlist is one named custom symbol list.
type Watchlist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Watchlists fetches the account's custom symbol lists. Feed the decoded
// Data to ParseWatchlists.
func (c *Client) Watchlists(ctx context.Context) (*schemas.Response, error) {
	return c.Get(ctx, "/api/v1/symbols_list/custom/")
}

// ParseWatchlists reads the lists out of a decoded symbols_list response,
// tolerating numeric and string ids.
func ParseWatchlists(data any) []Watchlist {
	arr, ok := data.([]any)
	if !ok {
		return nil
	}
	var lists []Watchlist
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		var id string
		switch v := m["id"].(type) {
		case float64:
			id = strconv.FormatInt(int64(v), 10)
		case string:
			id = v
		}
		if id == "" || name == "" {
			continue
		}
		lists = append(lists, Watchlist{ID: id, Name: name})
	}
	return lists
}

// numericField digs a numeric id out of a decoded JSON object, tolerating
// both a top-level field and the nested {"user": {...}} shape.
func numericField(m map[string]any, key string) (int64, bool) {
	if m == nil {
		return 0, false
	}
	if v, ok := m[key].(float64); ok && v == float64(int64(v)) {
		return int64(v), true
	}
	if nested, ok := m["user"].(map[string]any); ok {
		if v, ok := nested[key].(float64); ok && v == float64(int64(v)) {
			return int64(v), true
		}
	}
	return 0, false
}

// tokenString extracts the token from a decoded chart-token response, which
// is either a bare JSON string or an object with a "token" field.
func tokenString(data any) (string, bool) {
	switch v := data.(type) {
	case string:
		if v != "" {
			return v, true
		}
	case map[string]any:
		if s, ok := v["token"].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}
