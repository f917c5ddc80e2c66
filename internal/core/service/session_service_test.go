package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/skillswap/skillswap-client/internal/core/domain"
	"github.com/skillswap/skillswap-client/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubGateway struct {
	calls   []ports.Request
	handler func(req ports.Request) (*ports.Response, error)
}

func (g *stubGateway) Do(_ context.Context, req ports.Request) (*ports.Response, error) {
	g.calls = append(g.calls, req)
	return g.handler(req)
}

type stubStore struct {
	cred     *domain.Credential
	setErr   error
	clearErr error
}

func (s *stubStore) Get(_ context.Context) (*domain.Credential, error) { return s.cred, nil }

func (s *stubStore) Set(_ context.Context, cred *domain.Credential) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.cred = cred
	return nil
}

func (s *stubStore) Clear(_ context.Context) error {
	if s.clearErr != nil {
		return s.clearErr
	}
	s.cred = nil
	return nil
}

func jsonResponse(t *testing.T, v any) *ports.Response {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return &ports.Response{StatusCode: 200, Body: body}
}

// authOK scripts the happy login path: verify_code issues a token, /users/me
// returns the identity.
func authOK(t *testing.T, userID string) func(req ports.Request) (*ports.Response, error) {
	return func(req ports.Request) (*ports.Response, error) {
		switch req.Path {
		case "/auth/request_code":
			return jsonResponse(t, map[string]any{"message": "sent", "expires_in": 300, "debug_code": "000000"}), nil
		case "/auth/verify_code":
			return jsonResponse(t, map[string]any{"access_token": "opaque-token", "expires_in": 900, "is_new_user": true}), nil
		case "/users/me":
			return jsonResponse(t, domain.Identity{ID: userID, Role: domain.RoleStudent, IsActive: true}), nil
		default:
			return nil, errors.New("unexpected path: " + req.Path)
		}
	}
}

func newSession(gw *stubGateway, store *stubStore) *SessionService {
	return NewSessionService(gw, store, zerolog.Nop())
}

// ---------------------------------------------------------------------------
// Phone / code validation: must fail before any network call.
// ---------------------------------------------------------------------------

func TestSessionService_RequestCode_PhoneValidation(t *testing.T) {
	for _, phone := range []string{"89991234567", "+7999123456", "", "+1234567890123", "+7abc1234567"} {
		gw := &stubGateway{handler: authOK(t, "u1")}
		svc := newSession(gw, &stubStore{})

		_, err := svc.RequestCode(context.Background(), phone)

		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("phone %q: expected ValidationError, got %v", phone, err)
		}
		if len(gw.calls) != 0 {
			t.Errorf("phone %q: expected no network call, got %d", phone, len(gw.calls))
		}
	}
}

func TestSessionService_RequestCode_ValidPhone(t *testing.T) {
	gw := &stubGateway{handler: authOK(t, "u1")}
	svc := newSession(gw, &stubStore{})

	res, err := svc.RequestCode(context.Background(), "+79991234567")
	if err != nil {
		t.Fatalf("RequestCode returned error: %v", err)
	}
	if res.DebugCode != "000000" {
		t.Errorf("DebugCode = %q, want 000000", res.DebugCode)
	}
	if len(gw.calls) != 1 || !gw.calls[0].SkipAuth {
		t.Errorf("expected one unauthenticated call, got %+v", gw.calls)
	}
}

func TestSessionService_VerifyCode_CodeValidation(t *testing.T) {
	for _, code := range []string{"12345", "12a456", "1234567", ""} {
		gw := &stubGateway{handler: authOK(t, "u1")}
		svc := newSession(gw, &stubStore{})

		_, err := svc.VerifyCode(context.Background(), "+79991234567", code)

		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("code %q: expected ValidationError, got %v", code, err)
		}
		if len(gw.calls) != 0 {
			t.Errorf("code %q: expected no network call, got %d", code, len(gw.calls))
		}
	}
}

// ---------------------------------------------------------------------------
// Login / logout
// ---------------------------------------------------------------------------

func TestSessionService_VerifyCode_Success(t *testing.T) {
	gw := &stubGateway{handler: authOK(t, "user-1")}
	store := &stubStore{}
	svc := newSession(gw, store)

	res, err := svc.VerifyCode(context.Background(), "+79991234567", "123456")
	if err != nil {
		t.Fatalf("VerifyCode returned error: %v", err)
	}
	if !res.IsNewUser {
		t.Error("expected IsNewUser")
	}
	if res.Identity == nil || res.Identity.ID != "user-1" {
		t.Fatalf("unexpected identity: %+v", res.Identity)
	}
	if svc.State() != ports.StateAuthenticated {
		t.Errorf("state = %s, want authenticated", svc.State())
	}
	if store.cred == nil || store.cred.AccessToken != "opaque-token" {
		t.Errorf("credential not persisted: %+v", store.cred)
	}
}

func TestSessionService_VerifyCode_ServerRejects(t *testing.T) {
	gw := &stubGateway{handler: func(req ports.Request) (*ports.Response, error) {
		return nil, &domain.APIError{StatusCode: 400, Detail: "invalid verification code"}
	}}
	svc := newSession(gw, &stubStore{})

	_, err := svc.VerifyCode(context.Background(), "+79991234567", "123456")
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) || apiErr.Detail != "invalid verification code" {
		t.Fatalf("expected server error surfaced verbatim, got %v", err)
	}
	if svc.State() != ports.StateUnauthenticated {
		t.Errorf("state = %s, want unauthenticated", svc.State())
	}
}

func TestSessionService_Logout_BestEffortRevoke(t *testing.T) {
	gw := &stubGateway{handler: func(req ports.Request) (*ports.Response, error) {
		return nil, &domain.NetworkError{Err: errors.New("connection refused")}
	}}
	store := &stubStore{cred: &domain.Credential{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}}
	svc := newSession(gw, store)

	if err := svc.Logout(context.Background()); err != nil {
		t.Fatalf("Logout must not fail on revoke error, got: %v", err)
	}
	if store.cred != nil {
		t.Error("credential not cleared")
	}
	if svc.State() != ports.StateUnauthenticated {
		t.Errorf("state = %s, want unauthenticated", svc.State())
	}
}

// ---------------------------------------------------------------------------
// Bootstrap
// ---------------------------------------------------------------------------

func TestSessionService_Bootstrap_NoCredential(t *testing.T) {
	gw := &stubGateway{handler: authOK(t, "u1")}
	svc := newSession(gw, &stubStore{})

	state, err := svc.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}
	if state != ports.StateUnauthenticated {
		t.Errorf("state = %s, want unauthenticated", state)
	}
	if len(gw.calls) != 0 {
		t.Errorf("expected no network call without a credential, got %d", len(gw.calls))
	}
}

func TestSessionService_Bootstrap_RestoresSession(t *testing.T) {
	gw := &stubGateway{handler: authOK(t, "user-1")}
	store := &stubStore{cred: &domain.Credential{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}}
	svc := newSession(gw, store)

	state, err := svc.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}
	if state != ports.StateAuthenticated {
		t.Errorf("state = %s, want authenticated", state)
	}
	if id := svc.Identity(); id == nil || id.ID != "user-1" {
		t.Errorf("unexpected identity: %+v", id)
	}
}

func TestSessionService_Bootstrap_ExpiredCredential(t *testing.T) {
	gw := &stubGateway{handler: authOK(t, "u1")}
	store := &stubStore{cred: &domain.Credential{AccessToken: "tok", ExpiresAt: time.Now().Add(-time.Hour)}}
	svc := newSession(gw, store)

	state, err := svc.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}
	if state != ports.StateUnauthenticated {
		t.Errorf("state = %s, want unauthenticated", state)
	}
	if len(gw.calls) != 0 {
		t.Errorf("expected no network call for an expired credential, got %d", len(gw.calls))
	}
}

func TestSessionService_Bootstrap_CredentialRejected(t *testing.T) {
	// The gateway reports ErrAuthExpired after its internal refresh-and-retry
	// failed; bootstrap settles into unauthenticated without an error.
	gw := &stubGateway{handler: func(req ports.Request) (*ports.Response, error) {
		return nil, domain.ErrAuthExpired
	}}
	store := &stubStore{cred: &domain.Credential{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}}
	svc := newSession(gw, store)

	state, err := svc.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}
	if state != ports.StateUnauthenticated {
		t.Errorf("state = %s, want unauthenticated", state)
	}
}
