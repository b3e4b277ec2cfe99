package credstore

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/pricewatch/core"
	"github.com/peterbourgon/diskv/v3"
	log "github.com/sirupsen/logrus"
)

const (
	// cacheSizeMaxBytes max memory cache
	cacheSizeMaxBytes = 4096

	// accessKey is the access token slot name
	accessKey = "access"

	// refreshKey is the refresh token slot name
	refreshKey = "refresh"
)

// slot is what is written under each key. Both slots of one credential
// carry the same Pair id, so a torn write is detected on load.
type slot struct {
	Token    string    `json:"token"`
	Pair     string    `json:"pair"`
	IssuedAt time.Time `json:"issued_at"`
}

// DiskStore is a durable CredentialStore backed by diskv.
// Reads are served from the in-memory copy loaded at open time.
type DiskStore struct {
	// dv is a diskv instance
	dv  *diskv.Diskv
	log log.FieldLogger

	mu   sync.RWMutex // protects cred and serializes writes to dv
	cred core.Credential
	pair string // id shared by both slots of cred on disk
}

// NewDiskStore opens (or creates) the credential store under dir
func NewDiskStore(dir string, logger log.FieldLogger) (*DiskStore, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}

	// Simplest transform function: put all the data files into the base dir.
	flatTransform := func(s string) []string { return []string{} }

	dv := diskv.New(diskv.Options{
		BasePath:     dir,
		TempDir:      dir + ".tmp",
		Transform:    flatTransform,
		CacheSizeMax: cacheSizeMaxBytes,
		PathPerm:     0o700,
		FilePerm:     0o600,
	})

	s := &DiskStore{dv: dv, log: logger.WithField("store", dir)}
	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

// load reads both slots. A missing or mismatched slot leaves the store empty.
func (s *DiskStore) load() error {
	hasAccess, hasRefresh := s.dv.Has(accessKey), s.dv.Has(refreshKey)
	if !hasAccess && !hasRefresh {
		return nil
	}

	access, err := s.readSlot(accessKey, hasAccess)
	if err != nil {
		return err
	}
	refresh, err := s.readSlot(refreshKey, hasRefresh)
	if err != nil {
		return err
	}

	if access == nil || refresh == nil || access.Pair != refresh.Pair || access.Token == "" || refresh.Token == "" {
		s.log.Warn("Discarding incomplete credential found on disk")
		return s.erase()
	}

	s.cred = core.Credential{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		IssuedAt:     access.IssuedAt,
	}
	s.pair = access.Pair
	s.log.WithField("issued_at", s.cred.IssuedAt).Debug("Loaded credential from disk")

	return nil
}

func (s *DiskStore) readSlot(key string, present bool) (*slot, error) {
	if !present {
		return nil, nil
	}

	b, err := s.dv.Read(key)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", core.ErrStoreOperationFailed, key, err)
	}

	var v slot
	if err := json.Unmarshal(b, &v); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Unreadable credential slot")
		return nil, nil
	}

	return &v, nil
}

// Get returns a copy of the current credential
func (s *DiskStore) Get() (core.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cred.IsZero() {
		return core.Credential{}, false
	}
	return s.cred, true
}

// Set persists the pair and then makes it visible to readers.
// On a write error the previous credential stays in effect, on disk too.
func (s *DiskStore) Set(cred core.Credential) error {
	if cred.IsZero() {
		return core.ErrStoreOperationFailed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pair := uuid.NewString()
	if err := s.writeSlot(refreshKey, slot{Token: cred.RefreshToken, Pair: pair, IssuedAt: cred.IssuedAt}); err != nil {
		return err
	}
	if err := s.writeSlot(accessKey, slot{Token: cred.AccessToken, Pair: pair, IssuedAt: cred.IssuedAt}); err != nil {
		s.rollbackRefresh()
		return err
	}

	s.cred = cred
	s.pair = pair
	return nil
}

// rollbackRefresh puts back the refresh slot of the pair still in effect
// after a failed Set.
func (s *DiskStore) rollbackRefresh() {
	var err error
	if s.cred.IsZero() {
		err = s.dv.Erase(refreshKey)
		if os.IsNotExist(err) {
			err = nil
		}
	} else {
		err = s.writeSlot(refreshKey, slot{Token: s.cred.RefreshToken, Pair: s.pair, IssuedAt: s.cred.IssuedAt})
	}
	if err != nil {
		s.log.WithError(err).Warn("Credential on disk is incomplete and will be discarded on next start")
	}
}

func (s *DiskStore) writeSlot(key string, v slot) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", core.ErrStoreOperationFailed, key, err)
	}
	if err := s.dv.Write(key, b); err != nil {
		return fmt.Errorf("%w: write %s: %v", core.ErrStoreOperationFailed, key, err)
	}
	return nil
}

// Clear drops the credential. The in-memory copy is always dropped, even
// when erasing the files fails.
func (s *DiskStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred = core.Credential{}
	s.pair = ""
	return s.erase()
}

func (s *DiskStore) erase() error {
	for _, key := range []string{accessKey, refreshKey} {
		if err := s.dv.Erase(key); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: erase %s: %v", core.ErrStoreOperationFailed, key, err)
		}
	}
	return nil
}
