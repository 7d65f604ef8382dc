package schemas

import (
	"time"
)

// Platform identifies one of the two bridged trading platforms.
type Platform string

const (
	PlatformMarketInOut Platform = "marketinout"
	PlatformTradingView Platform = "tradingview"
)

// Valid reports whether p names a known platform.
func (p Platform) Valid() bool {
	return p == PlatformMarketInOut || p == PlatformTradingView
}

// Session is a captured browser session as produced by the capture extension.
// Fields is an opaque name/value mapping: it contains the platform's
// credential cookies alongside capture metadata (owner email, capture
// timestamp, source URL). The credential extraction strategies in
// internal/session know how to tell the two apart. Sessions are read-only
// once stored; a stale session is replaced by a fresh capture, never mutated.
type Session struct {
	ID         string            `json:"id"`
	Platform   Platform          `json:"platform"`
	UserEmail  string            `json:"user_email,omitempty"`
	Fields     map[string]string `json:"fields"`
	CapturedAt time.Time         `json:"captured_at"`
}

// Age returns how long ago the session was captured.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CapturedAt)
}
