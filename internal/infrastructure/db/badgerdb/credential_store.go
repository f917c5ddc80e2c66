// Package badgerdb provides the on-disk credential store backend. BadgerDB
// gives the client a durable local key-value file that survives restarts,
// which is what keeps a session alive across process reloads.
package badgerdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/skillswap/skillswap-client/internal/core/domain"
)

var credentialKey = []byte("auth:credential")

// CredentialStore persists the current access credential in BadgerDB.
type CredentialStore struct {
	db  *badger.DB
	log zerolog.Logger
}

// Open opens (or creates) the Badger database at dir and returns a store
// backed by it. The caller owns the returned closer.
func Open(dir string, log zerolog.Logger) (*CredentialStore, func() error, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &CredentialStore{db: db, log: log}, db.Close, nil
}

// NewCredentialStore wraps an already opened Badger database.
func NewCredentialStore(db *badger.DB, log zerolog.Logger) *CredentialStore {
	return &CredentialStore{db: db, log: log}
}

func (s *CredentialStore) Get(_ context.Context) (*domain.Credential, error) {
	var cred *domain.Credential
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(credentialKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			var c domain.Credential
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("decode stored credential: %w", err)
			}
			cred = &c
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return cred, nil
}

func (s *CredentialStore) Set(ctx context.Context, cred *domain.Credential) error {
	if cred == nil {
		return s.Clear(ctx)
	}
	raw, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(credentialKey, raw)
	})
}

func (s *CredentialStore) Clear(_ context.Context) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(credentialKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}
