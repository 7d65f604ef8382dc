package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMarketInOutCookie(t *testing.T) {
	t.Run("should pick the dynamic ASP cookie and skip metadata fields", func(t *testing.T) {
		fields := map[string]string{
			"sessionId":       "x",
			"extractedAt":     "2026-08-01T10:00:00Z",
			"userEmail":       "e@x.com",
			"userPassword":    "p",
			"ASPSESSIONIDXYZ": "abc",
		}
		cookie, err := ExtractMarketInOutCookie(fields)
		require.NoError(t, err)
		assert.Equal(t, "ASPSESSIONIDXYZ", cookie.Key)
		assert.Equal(t, "abc", cookie.Value)
	})

	t.Run("should pick deterministically when several candidates exist", func(t *testing.T) {
		fields := map[string]string{
			"ZSESSION":        "z",
			"ASPSESSIONIDABC": "a",
		}
		cookie, err := ExtractMarketInOutCookie(fields)
		require.NoError(t, err)
		// Sorted order makes the scan stable across map iterations.
		assert.Equal(t, "ASPSESSIONIDABC", cookie.Key)
	})

	t.Run("should skip empty candidate values", func(t *testing.T) {
		fields := map[string]string{
			"ASPSESSIONIDABC": "",
			"ASPSESSIONIDDEF": "val",
		}
		cookie, err := ExtractMarketInOutCookie(fields)
		require.NoError(t, err)
		assert.Equal(t, "ASPSESSIONIDDEF", cookie.Key)
	})

	t.Run("should fail when only metadata fields remain", func(t *testing.T) {
		fields := map[string]string{
			"sessionId":   "x",
			"extractedAt": "t",
			"userEmail":   "e",
		}
		_, err := ExtractMarketInOutCookie(fields)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCookieNotFound)
	})
}

func TestExtractTradingViewCredentials(t *testing.T) {
	t.Run("should extract all fields when present", func(t *testing.T) {
		creds, err := ExtractTradingViewCredentials(map[string]string{
			"sessionid":      "s1",
			"sessionid_sign": "sig1",
			"userId":         "42",
		})
		require.NoError(t, err)
		assert.Equal(t, "s1", creds.SessionID)
		assert.Equal(t, "sig1", creds.SessionIDSign)
		assert.EqualValues(t, 42, creds.UserID)
	})

	t.Run("should degrade gracefully without sign and userId", func(t *testing.T) {
		creds, err := ExtractTradingViewCredentials(map[string]string{
			"sessionid": "s1",
		})
		require.NoError(t, err)
		assert.Equal(t, "s1", creds.SessionID)
		assert.Empty(t, creds.SessionIDSign)
		assert.Zero(t, creds.UserID)
	})

	t.Run("should accept the historical session_id spelling", func(t *testing.T) {
		creds, err := ExtractTradingViewCredentials(map[string]string{
			"session_id": "legacy",
		})
		require.NoError(t, err)
		assert.Equal(t, "legacy", creds.SessionID)
	})

	t.Run("should fail on a non-numeric userId", func(t *testing.T) {
		_, err := ExtractTradingViewCredentials(map[string]string{
			"sessionid": "s1",
			"userId":    "forty-two",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a valid number")
	})

	t.Run("should fail when the sessionid is missing", func(t *testing.T) {
		_, err := ExtractTradingViewCredentials(map[string]string{
			"sessionid_sign": "sig1",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCookieNotFound)
	})
}
