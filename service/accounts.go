package service

import (
	"strings"
	"sync"

	"github.com/layer-3/pricewatch/core"
)

// accounts is the in-memory account table of the reference server
type accounts struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]*core.Account
	byEmail map[string]int64
}

func newAccounts() *accounts {
	return &accounts{
		nextID:  1,
		byID:    make(map[int64]*core.Account),
		byEmail: make(map[string]int64),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// insert assigns an id to a and stores it. Email and phone must be unique.
func (s *accounts) insert(a *core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.Email = normalizeEmail(a.Email)
	if _, ok := s.byEmail[a.Email]; ok {
		return core.ErrAccountExists
	}
	if s.phoneTaken(a.Phone, 0) {
		return core.ErrPhoneTaken
	}

	a.ID = s.nextID
	s.nextID++
	s.byID[a.ID] = a
	s.byEmail[a.Email] = a.ID
	return nil
}

// byEmailAddr returns a copy of the account registered under email
func (s *accounts) byEmailAddr(email string) (core.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return core.Account{}, false
	}
	return *s.byID[id], true
}

// get returns a copy of the account with id
func (s *accounts) get(id int64) (core.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return core.Account{}, false
	}
	return *a, true
}

// update applies fn to the stored account under the write lock
func (s *accounts) update(id int64, fn func(a *core.Account) error) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return core.Account{}, core.ErrNotFound
	}

	updated := *a
	if err := fn(&updated); err != nil {
		return core.Account{}, err
	}
	if updated.Phone != a.Phone && s.phoneTaken(updated.Phone, id) {
		return core.Account{}, core.ErrPhoneTaken
	}

	*a = updated
	return updated, nil
}

func (s *accounts) phoneTaken(phone string, except int64) bool {
	if phone == "" {
		return false
	}
	for id, a := range s.byID {
		if id != except && a.Phone == phone {
			return true
		}
	}
	return false
}
