// Package api implements the outbound HTTP layer of the client: the request
// gateway and the single-flight credential refresh coordinator.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/skillswap/skillswap-client/internal/core/domain"
	"github.com/skillswap/skillswap-client/internal/core/ports"
	"github.com/skillswap/skillswap-client/internal/metrics"
)

// Gateway is the authenticated request executor. It attaches the current
// bearer credential, and on a 401 consults the refresh coordinator once and
// retries the request exactly once. A persistently rejecting server therefore
// costs one retry, never a loop.
type Gateway struct {
	baseURL   string
	client    *http.Client
	store     ports.CredentialStore
	refresher ports.Refresher
	now       func() time.Time
	log       zerolog.Logger
}

var _ ports.Gateway = (*Gateway)(nil)

func NewGateway(baseURL string, client *http.Client, store ports.CredentialStore, refresher ports.Refresher, log zerolog.Logger) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Gateway{
		baseURL:   baseURL,
		client:    client,
		store:     store,
		refresher: refresher,
		now:       time.Now,
		log:       log,
	}
}

// Do executes the request. The returned response always has a 2xx status;
// everything else surfaces as an error per the domain taxonomy.
func (g *Gateway) Do(ctx context.Context, req ports.Request) (*ports.Response, error) {
	start := g.now()
	resp, err := g.doOnce(ctx, req, "")
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(req.Method, "error").Inc()
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !req.SkipAuth {
		cred, refreshErr := g.refresher.Refresh(ctx)
		if refreshErr != nil || cred == nil {
			metrics.RequestsTotal.WithLabelValues(req.Method, strconv.Itoa(http.StatusUnauthorized)).Inc()
			g.log.Debug().Str("path", req.Path).AnErr("refresh_error", refreshErr).Msg("credential rejected and refresh yielded nothing")
			return nil, domain.ErrAuthExpired
		}
		resp, err = g.doOnce(ctx, req, cred.AccessToken)
		if err != nil {
			metrics.RequestsTotal.WithLabelValues(req.Method, "error").Inc()
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			// The renewed credential was rejected too. Give up; no loops.
			metrics.RequestsTotal.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode)).Inc()
			return nil, domain.ErrAuthExpired
		}
	}

	metrics.RequestsTotal.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode)).Inc()
	metrics.RequestDuration.WithLabelValues(req.Method).Observe(g.now().Sub(start).Seconds())

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, resp.apiError
	}
	return &ports.Response{StatusCode: resp.StatusCode, Body: resp.body}, nil
}

type rawResponse struct {
	StatusCode int
	body       []byte
	apiError   error
}

// doOnce issues a single HTTP attempt. forceToken, when non-empty, overrides
// the stored credential (used for the post-refresh retry).
func (g *Gateway) doOnce(ctx context.Context, req ports.Request, forceToken string) (*rawResponse, error) {
	var payload io.Reader
	if req.Body != nil {
		buf, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		payload = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, g.baseURL+req.Path, payload)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if !req.SkipAuth {
		token := forceToken
		if token == "" {
			if cred, getErr := g.store.Get(ctx); getErr == nil && cred.Valid(g.now()) {
				token = cred.AccessToken
			}
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &domain.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.NetworkError{Err: err}
	}

	raw := &rawResponse{StatusCode: resp.StatusCode, body: body}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw.apiError = decodeAPIErrorBody(resp.StatusCode, body)
	}
	return raw, nil
}

// errorPayload is the server's error envelope.
type errorPayload struct {
	Detail string `json:"detail"`
}

// decodeAPIErrorBody unifies the server's {detail} shape into a typed error,
// mapping conflict and not-found statuses to their domain sentinels so callers
// never inspect ad-hoc strings.
func decodeAPIErrorBody(status int, body []byte) error {
	var payload errorPayload
	_ = json.Unmarshal(body, &payload)
	apiErr := &domain.APIError{StatusCode: status, Detail: payload.Detail}
	switch status {
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrConflict, apiErr.Error())
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrDealNotFound, apiErr.Error())
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrIllegalTransition, apiErr.Error())
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrForbidden, apiErr.Error())
	}
	return apiErr
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return decodeAPIErrorBody(resp.StatusCode, body)
}
