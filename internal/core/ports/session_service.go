package ports

import (
	"context"

	"github.com/skillswap/skillswap-client/internal/core/domain"
)

// SessionState is the coarse lifecycle state of the local session.
type SessionState string

const (
	StateUnauthenticated SessionState = "unauthenticated"
	StateAuthenticating  SessionState = "authenticating"
	StateAuthenticated   SessionState = "authenticated"
)

// CodeRequestResult is returned after requesting an SMS verification code.
type CodeRequestResult struct {
	Message   string
	ExpiresIn int
	// DebugCode is only populated by servers running in debug mode.
	DebugCode string
}

// VerifyResult is returned after a successful code verification.
type VerifyResult struct {
	Identity  *domain.Identity
	IsNewUser bool
}

// SessionService owns login, logout and identity bootstrap.
type SessionService interface {
	RequestCode(ctx context.Context, phone string) (*CodeRequestResult, error)
	VerifyCode(ctx context.Context, phone, code string) (*VerifyResult, error)
	Logout(ctx context.Context) error
	// Bootstrap restores a persisted session at process start, falling back
	// to a single refresh when the stored credential is rejected.
	Bootstrap(ctx context.Context) (SessionState, error)
	State() SessionState
	Identity() *domain.Identity
}
