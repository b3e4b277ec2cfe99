package revocation

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/layer-3/pricewatch/ports"
)

// MemoryStore is an in-memory implementation of the RevocationStore interface
type MemoryStore struct {
	clock clockwork.Clock

	mu                sync.Mutex
	invalidatedTokens map[string]time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(clock clockwork.Clock) ports.RevocationStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		clock:             clock,
		invalidatedTokens: make(map[string]time.Time),
	}
}

// InvalidateToken marks a token as invalidated until expiry elapses
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	s.invalidatedTokens[tokenID] = s.clock.Now().Add(expiry)
	return nil
}

// IsTokenInvalidated checks if a token is invalidated
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.invalidated(tokenID), nil
}

// ConsumeToken invalidates tokenID unless it already was
func (s *MemoryStore) ConsumeToken(ctx context.Context, tokenID string, expiry time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.invalidated(tokenID) {
		return false, nil
	}

	s.sweep()
	s.invalidatedTokens[tokenID] = s.clock.Now().Add(expiry)
	return true, nil
}

func (s *MemoryStore) invalidated(tokenID string) bool {
	expiryTime, exists := s.invalidatedTokens[tokenID]
	return exists && s.clock.Now().Before(expiryTime)
}

// sweep drops records whose expiry has passed
func (s *MemoryStore) sweep() {
	now := s.clock.Now()
	for id, expiryTime := range s.invalidatedTokens {
		if !now.Before(expiryTime) {
			delete(s.invalidatedTokens, id)
		}
	}
}
