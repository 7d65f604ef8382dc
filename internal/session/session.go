// Package session resolves captured browser sessions into the credential
// shapes the platform clients need, with a TTL cache in front of the
// session store.
package session

import (
	"context"
	"errors"

	"github.com/xkilldash9x/tradewire/api/schemas"
)

var (
	// ErrNoSession indicates that the store holds no captured session for
	// the requested platform (and user, when scoped).
	ErrNoSession = errors.New("no session found")
	// ErrCookieNotFound indicates that a session record carried no usable
	// credential field.
	ErrCookieNotFound = errors.New("cookie not found")
)

// UserCredentials scopes a session lookup to a specific account. The
// password is matched by the capture flow; lookups key on the email.
type UserCredentials struct {
	Email    string
	Password string
}

// Store is the external key-value session store the capture extension
// writes into. The core reads the latest capture per platform; it never
// mutates existing records. Save exists for ingesting fresh captures.
type Store interface {
	// Latest returns the most recent capture for the platform, or
	// ErrNoSession.
	Latest(ctx context.Context, platform schemas.Platform) (*schemas.Session, error)
	// LatestForUser returns the most recent capture for the platform scoped
	// to the user's email, or ErrNoSession.
	LatestForUser(ctx context.Context, platform schemas.Platform, email string) (*schemas.Session, error)
	// Save stores a fresh capture.
	Save(ctx context.Context, s *schemas.Session) error
}
