package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/skillswap/skillswap-client/internal/core/domain"
	"github.com/skillswap/skillswap-client/internal/core/ports"
)

// SessionService owns login, logout and identity bootstrap. All input
// validation happens locally before any network call is issued.
type SessionService struct {
	gw       ports.Gateway
	store    ports.CredentialStore
	validate *validator.Validate
	now      func() time.Time
	log      zerolog.Logger

	mu       sync.RWMutex
	state    ports.SessionState
	identity *domain.Identity
}

var _ ports.SessionService = (*SessionService)(nil)

// NewSessionService builds a session controller on top of the gateway. The
// refresh fallback during bootstrap rides on the gateway's own 401 path, so
// no direct coordinator reference is needed here.
func NewSessionService(gw ports.Gateway, store ports.CredentialStore, log zerolog.Logger) *SessionService {
	return &SessionService{
		gw:       gw,
		store:    store,
		validate: validator.New(),
		now:      time.Now,
		log:      log,
		state:    ports.StateUnauthenticated,
	}
}

// phoneInput matches the Russian E.164 shape the platform accepts: a literal
// +7 followed by exactly ten digits.
type phoneInput struct {
	Phone string `validate:"required,e164,startswith=+7,len=12"`
}

type codeInput struct {
	Code string `validate:"required,numeric,len=6"`
}

type requestCodeRequest struct {
	Phone string `json:"phone"`
}

type requestCodeResponse struct {
	Message   string `json:"message"`
	ExpiresIn int    `json:"expires_in"`
	DebugCode string `json:"debug_code,omitempty"`
}

type verifyCodeRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type verifyCodeResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	IsNewUser   bool   `json:"is_new_user"`
}

// RequestCode asks the server to send an SMS verification code. Malformed
// phone numbers fail fast with a validation error; no network call is made.
func (s *SessionService) RequestCode(ctx context.Context, phone string) (*ports.CodeRequestResult, error) {
	if err := s.validate.Struct(phoneInput{Phone: phone}); err != nil {
		return nil, &domain.ValidationError{Field: "phone", Reason: "must be +7 followed by 10 digits"}
	}

	resp, err := s.gw.Do(ctx, ports.Request{
		Method:   http.MethodPost,
		Path:     "/auth/request_code",
		Body:     requestCodeRequest{Phone: phone},
		SkipAuth: true,
	})
	if err != nil {
		return nil, err
	}

	var body requestCodeResponse
	if err := decodeJSON(resp, &body); err != nil {
		return nil, err
	}
	s.log.Info().Str("phone", phone).Int("expires_in", body.ExpiresIn).Msg("verification code requested")
	return &ports.CodeRequestResult{
		Message:   body.Message,
		ExpiresIn: body.ExpiresIn,
		DebugCode: body.DebugCode,
	}, nil
}

// VerifyCode exchanges the SMS code for a credential. On success the
// credential is persisted, the identity is fetched, and the session becomes
// authenticated. On any failure the session returns to unauthenticated and
// the error is surfaced verbatim.
func (s *SessionService) VerifyCode(ctx context.Context, phone, code string) (*ports.VerifyResult, error) {
	if err := s.validate.Struct(phoneInput{Phone: phone}); err != nil {
		return nil, &domain.ValidationError{Field: "phone", Reason: "must be +7 followed by 10 digits"}
	}
	if err := s.validate.Struct(codeInput{Code: code}); err != nil {
		return nil, &domain.ValidationError{Field: "code", Reason: "must be 6 digits"}
	}

	s.setState(ports.StateAuthenticating)

	resp, err := s.gw.Do(ctx, ports.Request{
		Method:   http.MethodPost,
		Path:     "/auth/verify_code",
		Body:     verifyCodeRequest{Phone: phone, Code: code},
		SkipAuth: true,
	})
	if err != nil {
		s.reset()
		return nil, err
	}

	var body verifyCodeResponse
	if err := decodeJSON(resp, &body); err != nil {
		s.reset()
		return nil, err
	}

	cred := domain.NewCredential(body.AccessToken, time.Duration(body.ExpiresIn)*time.Second, s.now())
	if err := s.store.Set(ctx, &cred); err != nil {
		s.reset()
		return nil, err
	}

	identity, err := s.fetchIdentity(ctx)
	if err != nil {
		s.reset()
		return nil, err
	}

	s.mu.Lock()
	s.state = ports.StateAuthenticated
	s.identity = identity
	s.mu.Unlock()

	s.log.Info().Str("user_id", identity.ID).Str("role", identity.Role).Bool("is_new_user", body.IsNewUser).Msg("session authenticated")
	return &ports.VerifyResult{Identity: identity, IsNewUser: body.IsNewUser}, nil
}

// Logout revokes the session server-side on a best-effort basis and
// unconditionally clears all local session state. A failed revoke is logged
// and never blocks the local logout.
func (s *SessionService) Logout(ctx context.Context) error {
	_, err := s.gw.Do(ctx, ports.Request{Method: http.MethodPost, Path: "/auth/logout"})
	if err != nil {
		s.log.Warn().Err(err).Msg("server-side logout failed, clearing local session anyway")
	}

	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.reset()
	s.log.Info().Msg("session logged out")
	return nil
}

// Bootstrap restores a persisted session at process start. A structurally
// valid stored credential is tried against /users/me; when the server rejects
// it, one refresh is attempted before giving up.
func (s *SessionService) Bootstrap(ctx context.Context) (ports.SessionState, error) {
	cred, err := s.store.Get(ctx)
	if err != nil {
		return ports.StateUnauthenticated, err
	}
	if !cred.Valid(s.now()) {
		s.reset()
		return ports.StateUnauthenticated, nil
	}

	identity, err := s.fetchIdentity(ctx)
	if err == nil {
		s.mu.Lock()
		s.state = ports.StateAuthenticated
		s.identity = identity
		s.mu.Unlock()
		return ports.StateAuthenticated, nil
	}

	// The gateway already performed its single refresh-and-retry; anything
	// still failing here means the session is gone.
	s.log.Info().Err(err).Msg("stored credential rejected, session not restored")
	s.reset()
	if errors.Is(err, domain.ErrAuthExpired) {
		return ports.StateUnauthenticated, nil
	}
	return ports.StateUnauthenticated, err
}

func (s *SessionService) State() ports.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *SessionService) Identity() *domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	clone := *s.identity
	return &clone
}

func (s *SessionService) fetchIdentity(ctx context.Context) (*domain.Identity, error) {
	resp, err := s.gw.Do(ctx, ports.Request{Method: http.MethodGet, Path: "/users/me"})
	if err != nil {
		return nil, err
	}
	var identity domain.Identity
	if err := decodeJSON(resp, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

func (s *SessionService) setState(state ports.SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *SessionService) reset() {
	s.mu.Lock()
	s.state = ports.StateUnauthenticated
	s.identity = nil
	s.mu.Unlock()
}
