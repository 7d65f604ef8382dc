package session

import (
	"fmt"
	"sort"
	"strconv"
)

// metadataFields are the record fields that are never credentials. The
// extraction scan skips them when hunting for the session cookie.
var metadataFields = map[string]struct{}{
	"id":           {},
	"sessionId":    {},
	"platform":     {},
	"source":       {},
	"url":          {},
	"extractedAt":  {},
	"capturedAt":   {},
	"userEmail":    {},
	"userPassword": {},
}

// Cookie is a single name/value credential pair.
type Cookie struct {
	Key   string
	Value string
}

// ExtractMarketInOutCookie finds the session cookie in a captured record.
// MarketInOut issues a differently named ASP session cookie per server
// instance (ASPSESSIONIDxxxx), so the name cannot be hard-coded: the scan
// takes the first non-metadata, non-empty field in sorted order. Sorting
// keeps the pick deterministic across map iterations.
func ExtractMarketInOutCookie(fields map[string]string) (Cookie, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if _, skip := metadataFields[k]; skip {
			continue
		}
		if fields[k] == "" {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return Cookie{}, fmt.Errorf("marketinout session: %w", ErrCookieNotFound)
	}
	sort.Strings(keys)
	return Cookie{Key: keys[0], Value: fields[keys[0]]}, nil
}

// TradingViewCredentials is the credential shape the TradingView client
// needs. SessionIDSign is optional; UserID is 0 when the capture did not
// include it, in which case the client recovers it via an API round trip.
type TradingViewCredentials struct {
	SessionID     string
	SessionIDSign string
	UserID        int64
}

// ExtractTradingViewCredentials reads the sessionid cookie (tolerating the
// historical "session_id" spelling), the optional signature cookie, and the
// optional numeric user id from a captured record.
func ExtractTradingViewCredentials(fields map[string]string) (TradingViewCredentials, error) {
	sid := fields["sessionid"]
	if sid == "" {
		sid = fields["session_id"]
	}
	if sid == "" {
		return TradingViewCredentials{}, fmt.Errorf("tradingview session: sessionid %w", ErrCookieNotFound)
	}

	creds := TradingViewCredentials{
		SessionID:     sid,
		SessionIDSign: fields["sessionid_sign"],
	}

	if raw, ok := fields["userId"]; ok && raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return TradingViewCredentials{}, fmt.Errorf("userId %q is not a valid number", raw)
		}
		creds.UserID = id
	}
	return creds, nil
}
