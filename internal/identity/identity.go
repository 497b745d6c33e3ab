// Package identity defines the authentication capability the rest of the
// application depends on: who the current user is, a stream of sign-in /
// sign-out changes, and credential operations.
package identity

import (
	"context"
	"errors"
)

// ErrUnauthenticated is returned when an operation requires an active
// identity and none exists.
var ErrUnauthenticated = errors.New("no authenticated user")

// Identity is an authenticated account
type Identity struct {
	ID       string
	Email    string
	FullName string
}

// Provider supplies the current user, a change stream, and credential
// operations. A nil value on the change stream means "signed out".
type Provider interface {
	CurrentUser(ctx context.Context) (*Identity, error)
	// UserChanges returns a channel of identity changes and a release
	// function. The current identity is delivered immediately on subscribe.
	UserChanges() (<-chan *Identity, func())
	SignUp(ctx context.Context, email, password string) (*Identity, error)
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) (string, error)
	UpdatePassword(ctx context.Context, newPassword string) error
	DeleteAccount(ctx context.Context) error
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity attaches a request-scoped principal to the context
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the request-scoped principal, if any
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}
