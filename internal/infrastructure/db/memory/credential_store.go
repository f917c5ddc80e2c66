// Package memory provides an in-process credential store, used in tests and
// when no durable backend is configured.
package memory

import (
	"context"
	"sync"

	"github.com/skillswap/skillswap-client/internal/core/domain"
)

// CredentialStore keeps the credential in memory only. The session does not
// survive a restart with this backend.
type CredentialStore struct {
	mu   sync.RWMutex
	cred *domain.Credential
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{}
}

func (s *CredentialStore) Get(_ context.Context) (*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return nil, nil
	}
	clone := *s.cred
	return &clone, nil
}

func (s *CredentialStore) Set(ctx context.Context, cred *domain.Credential) error {
	if cred == nil {
		return s.Clear(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *cred
	s.cred = &clone
	return nil
}

func (s *CredentialStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	return nil
}
