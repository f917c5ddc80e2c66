package ports

import (
	"context"

	"github.com/skillswap/skillswap-client/internal/core/domain"
)

// CredentialStore is the durable holder of the current access credential.
// It carries no logic beyond get/set/clear; Get returns (nil, nil) when no
// credential is stored. Every Set must be persisted before returning.
type CredentialStore interface {
	Get(ctx context.Context) (*domain.Credential, error)
	Set(ctx context.Context, cred *domain.Credential) error
	Clear(ctx context.Context) error
}
