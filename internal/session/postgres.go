package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xkilldash9x/tradewire/api/schemas"
	"go.uber.org/zap"
)

// DBPool abstracts pgxpool.Pool so the store can be mocked in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is the production Store backed by the captured_sessions
// table the capture web app writes into.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
}

// NewPostgresStore creates the store and verifies the connection.
func NewPostgresStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping session store: %w", err)
	}
	return &PostgresStore{
		pool: pool,
		log:  logger.Named("session_store"),
	}, nil
}

const latestQuery = `
    SELECT id, platform, user_email, fields, captured_at
    FROM captured_sessions
    WHERE platform = $1
    ORDER BY captured_at DESC
    LIMIT 1;
`

const latestForUserQuery = `
    SELECT id, platform, user_email, fields, captured_at
    FROM captured_sessions
    WHERE platform = $1 AND user_email = $2
    ORDER BY captured_at DESC
    LIMIT 1;
`

// Latest returns the most recent capture for the platform.
func (s *PostgresStore) Latest(ctx context.Context, platform schemas.Platform) (*schemas.Session, error) {
	return s.queryOne(ctx, latestQuery, string(platform))
}

// LatestForUser returns the most recent capture for the platform and email.
func (s *PostgresStore) LatestForUser(ctx context.Context, platform schemas.Platform, email string) (*schemas.Session, error) {
	return s.queryOne(ctx, latestForUserQuery, string(platform), email)
}

func (s *PostgresStore) queryOne(ctx context.Context, sql string, args ...any) (*schemas.Session, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error during row iteration: %w", err)
		}
		return nil, ErrNoSession
	}

	var (
		sess  schemas.Session
		email *string
	)
	if err := rows.Scan(&sess.ID, &sess.Platform, &email, &sess.Fields, &sess.CapturedAt); err != nil {
		return nil, fmt.Errorf("failed to scan session row: %w", err)
	}
	if email != nil {
		sess.UserEmail = *email
	}
	return &sess, nil
}

// Save stores a fresh capture, assigning an id and timestamp when absent.
func (s *PostgresStore) Save(ctx context.Context, sess *schemas.Session) error {
	if sess == nil {
		return errors.New("nil session")
	}
	if !sess.Platform.Valid() {
		return fmt.Errorf("unknown platform %q", sess.Platform)
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.CapturedAt.IsZero() {
		sess.CapturedAt = time.Now().UTC()
	}

	const insert = `
        INSERT INTO captured_sessions (id, platform, user_email, fields, captured_at)
        VALUES ($1, $2, $3, $4, $5);
    `
	var email *string
	if sess.UserEmail != "" {
		email = &sess.UserEmail
	}
	if _, err := s.pool.Exec(ctx, insert, sess.ID, string(sess.Platform), email, sess.Fields, sess.CapturedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	s.log.Info("session saved",
		zap.String("session_id", sess.ID),
		zap.String("platform", string(sess.Platform)))
	return nil
}
