package ports

import (
	"context"

	"github.com/skillswap/skillswap-client/internal/core/domain"
)

// Request describes a single API call. Body, when non-nil, is JSON-encoded.
type Request struct {
	Method string
	Path   string
	Body   any
	// SkipAuth disables the bearer header and the 401 refresh-and-retry
	// path. Used by the unauthenticated auth endpoints.
	SkipAuth bool
}

// Response is the decoded-enough view of a successful API call. Body is
// empty for void responses.
type Response struct {
	StatusCode int
	Body       []byte
}

// Gateway executes authenticated requests against the platform API. On a 401
// it consults the refresh coordinator once and retries the request at most
// once with the renewed credential.
type Gateway interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// Refresher renews the current credential. Concurrent callers share a single
// in-flight renewal and its outcome.
type Refresher interface {
	Refresh(ctx context.Context) (*domain.Credential, error)
}
