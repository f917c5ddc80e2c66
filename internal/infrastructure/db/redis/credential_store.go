package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skillswap/skillswap-client/internal/core/domain"
)

const credentialKey = "skillswap:credential"

// CredentialStore persists the current access credential in Redis.
// The key expires with the credential so a dead session cleans itself up.
type CredentialStore struct {
	client *redis.Client
}

// NewCredentialStore creates a CredentialStore wrapping the given Redis client.
func NewCredentialStore(client *redis.Client) *CredentialStore {
	return &CredentialStore{client: client}
}

func (s *CredentialStore) Get(ctx context.Context) (*domain.Credential, error) {
	raw, err := s.client.Get(ctx, credentialKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credential get: %w", err)
	}
	var cred domain.Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, fmt.Errorf("credential decode: %w", err)
	}
	return &cred, nil
}

func (s *CredentialStore) Set(ctx context.Context, cred *domain.Credential) error {
	if cred == nil {
		return s.Clear(ctx)
	}
	raw, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("credential encode: %w", err)
	}
	var ttl time.Duration
	if until := time.Until(cred.ExpiresAt); until > 0 {
		ttl = until
	}
	return s.client.Set(ctx, credentialKey, raw, ttl).Err()
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, credentialKey).Err()
}
