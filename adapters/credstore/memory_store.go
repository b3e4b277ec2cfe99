package credstore

import (
	"sync"

	"github.com/layer-3/pricewatch/core"
	"github.com/layer-3/pricewatch/ports"
)

// MemoryStore is an in-memory implementation of the CredentialStore interface.
// It does not survive a restart; use DiskStore for that.
type MemoryStore struct {
	mu   sync.RWMutex
	cred core.Credential
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.CredentialStore {
	return &MemoryStore{}
}

// Get returns a copy of the current credential
func (s *MemoryStore) Get() (core.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cred.IsZero() {
		return core.Credential{}, false
	}
	return s.cred, true
}

// Set replaces the credential pair
func (s *MemoryStore) Set(cred core.Credential) error {
	if cred.IsZero() {
		return core.ErrStoreOperationFailed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred = cred
	return nil
}

// Clear drops the credential pair. Clearing an empty store is a no-op.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred = core.Credential{}
	return nil
}
