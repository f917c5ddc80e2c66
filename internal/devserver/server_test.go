package devserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/skillswap/skillswap-client/internal/core/domain"
	"github.com/skillswap/skillswap-client/internal/core/ports"
	"github.com/skillswap/skillswap-client/internal/core/service"
	"github.com/skillswap/skillswap-client/internal/infrastructure/api"
	"github.com/skillswap/skillswap-client/internal/infrastructure/db/memory"
)

type testClient struct {
	session ports.SessionService
	deals   ports.DealService
	store   ports.CredentialStore
}

// newE2EClient wires a full client stack against the test server, with its
// own cookie jar and credential store so two users can coexist in one test.
func newE2EClient(t *testing.T, baseURL string) *testClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	httpClient := &http.Client{Timeout: 5 * time.Second, Jar: jar}
	store := memory.NewCredentialStore()
	refresher := api.NewRefreshCoordinator(baseURL, httpClient, store, zerolog.Nop())
	gw := api.NewGateway(baseURL, httpClient, store, refresher, zerolog.Nop())
	return &testClient{
		session: service.NewSessionService(gw, store, zerolog.Nop()),
		deals:   service.NewDealService(gw, zerolog.Nop()),
		store:   store,
	}
}

func login(t *testing.T, c *testClient, phone string) {
	t.Helper()
	ctx := context.Background()
	code, err := c.session.RequestCode(ctx, phone)
	if err != nil {
		t.Fatalf("RequestCode(%s): %v", phone, err)
	}
	if code.DebugCode == "" {
		t.Fatal("debug mode did not expose the verification code")
	}
	if _, err := c.session.VerifyCode(ctx, phone, code.DebugCode); err != nil {
		t.Fatalf("VerifyCode(%s): %v", phone, err)
	}
}

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	srv := New(Options{JWTSecret: "e2e-test-secret", Debug: true}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv.Notifier.Start(ctx)

	ts := httptest.NewServer(srv.Echo)
	t.Cleanup(ts.Close)
	return srv, ts.URL
}

func TestE2E_FullNegotiation(t *testing.T) {
	const (
		studentPhone = "+79991234567"
		teacherPhone = "+79997654321"
		chatID       = int64(42)
	)

	srv, baseURL := startServer(t)
	ctx := context.Background()

	events := make(chan DealEvent, 16)
	srv.Notifier.Subscribe(events)

	student := newE2EClient(t, baseURL)
	teacher := newE2EClient(t, baseURL)
	login(t, student, studentPhone)
	login(t, teacher, teacherPhone)

	studentID, ok := srv.UserID(studentPhone)
	if !ok {
		t.Fatal("student not registered after login")
	}
	teacherID, ok := srv.UserID(teacherPhone)
	if !ok {
		t.Fatal("teacher not registered after login")
	}
	srv.SeedChat(chatID, studentID, teacherID)

	deal, err := student.deals.Propose(ctx, chatID, ports.DealTerms{Skill: "Guitar", Time: "Fri 17:00", Place: "Library"})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if deal.Status != domain.StatusPending {
		t.Errorf("proposed deal status = %s, want pending", deal.Status)
	}

	// Only the teacher may accept.
	if _, err := student.deals.ApplyTransition(ctx, chatID, domain.StatusAccepted, studentID, ""); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("student accept: expected ErrForbidden, got %v", err)
	}

	accepted, err := teacher.deals.ApplyTransition(ctx, chatID, domain.StatusAccepted, teacherID, "sounds good")
	if err != nil {
		t.Fatalf("teacher accept: %v", err)
	}
	if accepted.Status != domain.StatusAccepted {
		t.Errorf("status = %s, want accepted", accepted.Status)
	}

	// The student's snapshot is still pending; re-sync before completing.
	if _, err := student.deals.GetChatDeal(ctx, chatID); err != nil {
		t.Fatalf("GetChatDeal: %v", err)
	}
	completed, err := student.deals.ApplyTransition(ctx, chatID, domain.StatusCompleted, studentID, "lesson done")
	if err != nil {
		t.Fatalf("student complete: %v", err)
	}
	if completed.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want completed", completed.Status)
	}

	// The server's transition log replays to the final status.
	logs, err := student.deals.GetDealLogs(ctx, deal.ID)
	if err != nil {
		t.Fatalf("GetDealLogs: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("server log has %d entries, want 3", len(logs))
	}
	if final, err := domain.Replay(logs); err != nil || final != domain.StatusCompleted {
		t.Errorf("Replay = (%s, %v), want (completed, nil)", final, err)
	}

	// Every committed transition was fanned out.
	for i := 0; i < 3; i++ {
		select {
		case ev := <-events:
			if ev.DealID != deal.ID {
				t.Errorf("event %d for deal %s, want %s", i, ev.DealID, deal.ID)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for deal event %d", i)
		}
	}
}

func TestE2E_ConflictOnSecondProposal(t *testing.T) {
	srv, baseURL := startServer(t)
	ctx := context.Background()

	student := newE2EClient(t, baseURL)
	other := newE2EClient(t, baseURL)
	login(t, student, "+79991111111")
	login(t, other, "+79992222222")

	studentID, _ := srv.UserID("+79991111111")
	otherID, _ := srv.UserID("+79992222222")
	srv.SeedChat(7, studentID, otherID)

	if _, err := student.deals.Propose(ctx, 7, ports.DealTerms{Skill: "Chess", Time: "Sat 10:00", Place: "Park"}); err != nil {
		t.Fatalf("first Propose: %v", err)
	}
	// The second client has no local snapshot, so the server enforces this one.
	_, err := other.deals.Propose(ctx, 7, ports.DealTerms{Skill: "Chess", Time: "Sun 10:00", Place: "Park"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict from server, got %v", err)
	}
}

func TestE2E_StaleTokenRefreshedThroughCookie(t *testing.T) {
	srv, baseURL := startServer(t)
	ctx := context.Background()

	client := newE2EClient(t, baseURL)
	login(t, client, "+79993333333")
	if _, ok := srv.UserID("+79993333333"); !ok {
		t.Fatal("user not registered after login")
	}

	// Corrupt the stored access token. The refresh cookie in the jar is still
	// valid, so the gateway must renew transparently and retry.
	if err := client.store.Set(ctx, &domain.Credential{AccessToken: "not-a-valid-token", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("corrupt store: %v", err)
	}

	if _, err := client.deals.GetMyDeals(ctx); err != nil {
		t.Fatalf("GetMyDeals after token corruption: %v", err)
	}

	cred, err := client.store.Get(ctx)
	if err != nil || cred == nil || cred.AccessToken == "not-a-valid-token" {
		t.Errorf("credential not renewed: %+v, %v", cred, err)
	}
}

func TestE2E_LogoutRevokesRefreshSession(t *testing.T) {
	_, baseURL := startServer(t)
	ctx := context.Background()

	client := newE2EClient(t, baseURL)
	login(t, client, "+79994444444")

	if err := client.session.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	// With no credential and no refresh session, protected calls must settle
	// on the auth-expired error instead of retrying forever.
	_, err := client.deals.GetMyDeals(ctx)
	if !errors.Is(err, domain.ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired after logout, got %v", err)
	}
}
