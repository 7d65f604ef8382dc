package session

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/tradewire/api/schemas"
	"go.uber.org/zap"
)

// flexibleSQLMatcher builds a whitespace-insensitive regex for SQL mocks.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

var sessionColumns = []string{"id", "platform", "user_email", "fields", "captured_at"}

func TestNewPostgresStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = NewPostgresStore(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresLatest(t *testing.T) {
	newStore := func(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
		t.Helper()
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		mockPool.ExpectPing()
		store, err := NewPostgresStore(context.Background(), mockPool, zap.NewNop())
		require.NoError(t, err)
		return store, mockPool
	}

	t.Run("should return the newest capture for a platform", func(t *testing.T) {
		store, mockPool := newStore(t)
		defer mockPool.Close()

		capturedAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
		email := "a@x.com"
		mockPool.ExpectQuery(flexibleSQLMatcher(latestQuery)).
			WithArgs("marketinout").
			WillReturnRows(pgxmock.NewRows(sessionColumns).
				AddRow("sess-1", "marketinout", &email,
					map[string]string{"ASPSESSIONIDXYZ": "abc"}, capturedAt))

		sess, err := store.Latest(context.Background(), schemas.PlatformMarketInOut)
		require.NoError(t, err)
		assert.Equal(t, "sess-1", sess.ID)
		assert.Equal(t, schemas.PlatformMarketInOut, sess.Platform)
		assert.Equal(t, "a@x.com", sess.UserEmail)
		assert.Equal(t, "abc", sess.Fields["ASPSESSIONIDXYZ"])
		assert.True(t, sess.CapturedAt.Equal(capturedAt))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should return ErrNoSession when no rows match", func(t *testing.T) {
		store, mockPool := newStore(t)
		defer mockPool.Close()

		mockPool.ExpectQuery(flexibleSQLMatcher(latestQuery)).
			WithArgs("tradingview").
			WillReturnRows(pgxmock.NewRows(sessionColumns))

		_, err := store.Latest(context.Background(), schemas.PlatformTradingView)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoSession)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should scope user queries to the email", func(t *testing.T) {
		store, mockPool := newStore(t)
		defer mockPool.Close()

		email := "a@x.com"
		mockPool.ExpectQuery(flexibleSQLMatcher(latestForUserQuery)).
			WithArgs("tradingview", "a@x.com").
			WillReturnRows(pgxmock.NewRows(sessionColumns).
				AddRow("sess-2", "tradingview", &email,
					map[string]string{"sessionid": "s1"}, time.Now()))

		sess, err := store.LatestForUser(context.Background(), schemas.PlatformTradingView, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, "sess-2", sess.ID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresSave(t *testing.T) {
	t.Run("should insert a capture and assign missing identity", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing()
		store, err := NewPostgresStore(context.Background(), mockPool, zap.NewNop())
		require.NoError(t, err)

		mockPool.ExpectExec(`INSERT INTO captured_sessions`).
			WithArgs(pgxmock.AnyArg(), "marketinout", (*string)(nil),
				map[string]string{"ASPSESSIONIDXYZ": "abc"}, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		sess := &schemas.Session{
			Platform: schemas.PlatformMarketInOut,
			Fields:   map[string]string{"ASPSESSIONIDXYZ": "abc"},
		}
		require.NoError(t, store.Save(context.Background(), sess))
		assert.NotEmpty(t, sess.ID)
		assert.False(t, sess.CapturedAt.IsZero())
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should reject an unknown platform", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing()
		store, err := NewPostgresStore(context.Background(), mockPool, zap.NewNop())
		require.NoError(t, err)

		err = store.Save(context.Background(), &schemas.Session{Platform: "robinhood"})
		require.Error(t, err)
	})
}
