package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/skillswap/skillswap-client/internal/core/domain"
	"github.com/skillswap/skillswap-client/internal/core/ports"
	"github.com/skillswap/skillswap-client/internal/metrics"
)

const refreshKey = "credential"

// RefreshCoordinator renews the access credential against POST /auth/refresh.
// Concurrent callers are collapsed into a single network attempt: everyone
// waiting on an in-flight renewal receives that attempt's outcome, and only
// the next call after resolution starts a fresh one.
//
// It deliberately bypasses the Gateway and issues its own request, so a 401
// during refresh can never recurse back into another refresh.
type RefreshCoordinator struct {
	baseURL string
	client  *http.Client
	store   ports.CredentialStore
	group   singleflight.Group
	now     func() time.Time
	log     zerolog.Logger
}

func NewRefreshCoordinator(baseURL string, client *http.Client, store ports.CredentialStore, log zerolog.Logger) *RefreshCoordinator {
	if client == nil {
		client = http.DefaultClient
	}
	return &RefreshCoordinator{
		baseURL: baseURL,
		client:  client,
		store:   store,
		now:     time.Now,
		log:     log,
	}
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Refresh renews the credential, writing the result to the store. On failure
// the store is cleared so no stale credential survives a dead session.
func (r *RefreshCoordinator) Refresh(ctx context.Context) (*domain.Credential, error) {
	v, err, shared := r.group.Do(refreshKey, func() (any, error) {
		cred, err := r.doRefresh(ctx)
		if err != nil {
			metrics.RefreshTotal.WithLabelValues("failure").Inc()
			if clearErr := r.store.Clear(context.WithoutCancel(ctx)); clearErr != nil {
				r.log.Error().Err(clearErr).Msg("failed to clear credential store after refresh failure")
			}
			return nil, err
		}
		metrics.RefreshTotal.WithLabelValues("success").Inc()
		if setErr := r.store.Set(ctx, cred); setErr != nil {
			return nil, fmt.Errorf("persist refreshed credential: %w", setErr)
		}
		return cred, nil
	})
	if err != nil {
		r.log.Warn().Err(err).Bool("shared", shared).Msg("credential refresh failed")
		return nil, err
	}
	return v.(*domain.Credential), nil
}

func (r *RefreshCoordinator) doRefresh(ctx context.Context) (*domain.Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/auth/refresh", bytes.NewReader(nil))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var body refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}
	if body.AccessToken == "" {
		return nil, &domain.APIError{StatusCode: resp.StatusCode, Detail: "refresh returned empty token"}
	}

	cred := domain.NewCredential(body.AccessToken, time.Duration(body.ExpiresIn)*time.Second, r.now())
	r.log.Debug().Time("expires_at", cred.ExpiresAt).Msg("credential refreshed")
	return &cred, nil
}
