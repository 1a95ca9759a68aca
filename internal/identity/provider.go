package identity

import (
	"context"
	"errors"
)

// Sign-in rejection kinds. Shown inline by the caller; no session is
// established for any of them.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrWrongPassword = errors.New("wrong password")
	ErrInvalidEmail  = errors.New("invalid email")
	ErrRateLimited   = errors.New("too many attempts, try again later")
)

// Session is an authenticated identity. It carries no role: authorization is
// resolved separately from the user profile.
type Session struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// AuthChange is emitted on every sign-in and sign-out. Session is nil when the
// user signed out (or was forced out).
type AuthChange struct {
	UserID  string
	Session *Session
}

// Provider authenticates staff. Implementations are external collaborators;
// the rest of the system only depends on this surface.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(userID string)
	OnAuthChange(fn func(AuthChange)) (unsubscribe func())

	// IsSignedIn reports whether the user's session is still honored. A forced
	// SignOut revokes the session until the next successful SignIn.
	IsSignedIn(userID string) bool
}

// Registrar is the optional credential-provisioning side of a provider, used
// only for startup bootstrap. Regular accounts are provisioned out-of-band.
type Registrar interface {
	Register(ctx context.Context, userID, email, password string) error
}
