package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/skillswap/skillswap-client/internal/core/domain"
	"github.com/skillswap/skillswap-client/internal/infrastructure/db/memory"
)

func TestRefreshCoordinator_SingleFlight(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		// Hold the in-flight renewal open long enough for every waiter to
		// pile onto it.
		time.Sleep(150 * time.Millisecond)
		w.Write([]byte(`{"access_token":"fresh-token","expires_in":900}`))
	}))
	defer srv.Close()

	store := memory.NewCredentialStore()
	coord := NewRefreshCoordinator(srv.URL, srv.Client(), store, zerolog.Nop())

	const waiters = 8
	var wg sync.WaitGroup
	results := make([]*domain.Credential, waiters)
	errs := make([]error, waiters)

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = coord.Refresh(context.Background())
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server saw %d refresh calls for %d concurrent waiters, want 1", got, waiters)
	}
	for i := 0; i < waiters; i++ {
		if errs[i] != nil {
			t.Fatalf("waiter %d: Refresh returned error: %v", i, errs[i])
		}
		if results[i] == nil || results[i].AccessToken != "fresh-token" {
			t.Errorf("waiter %d: unexpected credential: %+v", i, results[i])
		}
	}

	cred, err := store.Get(context.Background())
	if err != nil || cred == nil || cred.AccessToken != "fresh-token" {
		t.Errorf("store not updated: %+v, %v", cred, err)
	}
}

func TestRefreshCoordinator_SequentialCallsAreIndependent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"access_token":"fresh-token","expires_in":900}`))
	}))
	defer srv.Close()

	coord := NewRefreshCoordinator(srv.URL, srv.Client(), memory.NewCredentialStore(), zerolog.Nop())

	for i := 0; i < 3; i++ {
		if _, err := coord.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh %d returned error: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server saw %d calls for 3 sequential refreshes, want 3", got)
	}
}

func TestRefreshCoordinator_FailureClearsCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"refresh session expired"}`))
	}))
	defer srv.Close()

	store := memory.NewCredentialStore()
	store.Set(context.Background(), staleCredential())
	coord := NewRefreshCoordinator(srv.URL, srv.Client(), store, zerolog.Nop())

	_, err := coord.Refresh(context.Background())
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if cred, _ := store.Get(context.Background()); cred != nil {
		t.Errorf("credential survived a failed refresh: %+v", cred)
	}
}

func TestRefreshCoordinator_EmptyTokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"","expires_in":900}`))
	}))
	defer srv.Close()

	coord := NewRefreshCoordinator(srv.URL, srv.Client(), memory.NewCredentialStore(), zerolog.Nop())
	if _, err := coord.Refresh(context.Background()); err == nil {
		t.Fatal("expected error for empty access token")
	}
}
