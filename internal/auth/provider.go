package auth

import (
	"context"
	"errors"
)

// ErrIdentitiesSubscribed is returned by a second call to Identities.
var ErrIdentitiesSubscribed = errors.New("identity stream already subscribed")

// Identity is the signed-in account as seen by the provider.
type Identity struct {
	UserID   string
	Email    string
	Verified bool
	Token    string
}

// Provider is the identity service boundary. Tokens returned in an Identity
// are passed back for operations that need a fresh credential.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (Identity, error)
	SendVerification(ctx context.Context, email string) error
	Verify(ctx context.Context, code string) error
	SignIn(ctx context.Context, email, password string) (Identity, error)
	SignOut(ctx context.Context) error
	Reauthenticate(ctx context.Context, token, password string) (Identity, error)
	ChangePassword(ctx context.Context, token, newPassword string) error
	DeleteAccount(ctx context.Context, token string) error

	// Identities streams sign-in (non-nil) and sign-out (nil) events. It may
	// be subscribed once per process.
	Identities() (<-chan *Identity, error)
}
