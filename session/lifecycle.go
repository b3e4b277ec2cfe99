package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/layer-3/pricewatch/core"
	"github.com/layer-3/pricewatch/ports"
	log "github.com/sirupsen/logrus"
)

// Lifecycle owns the Unauthenticated/Authenticated transitions and is the
// only component that clears the credential store.
//
// Every transition bumps a generation counter. A refresh started under one
// generation can only commit or tear down while that generation is current,
// so a logout (or a fresh login) during an in-flight refresh always wins.
type Lifecycle struct {
	store  ports.CredentialStore
	api    ports.AuthAPI
	events ports.SessionEvents
	clock  clockwork.Clock
	log    log.FieldLogger

	mu  sync.Mutex // serializes transitions and protects gen
	gen uint64
}

// NewLifecycle creates a lifecycle over store. The initial state is whatever
// the store holds: a credential found at startup is optimistically treated
// as authenticated.
func NewLifecycle(store ports.CredentialStore, api ports.AuthAPI, events ports.SessionEvents, clock clockwork.Clock, logger log.FieldLogger) *Lifecycle {
	return &Lifecycle{
		store:  store,
		api:    api,
		events: events,
		clock:  clock,
		log:    logger,
	}
}

// State is derived from the presence of a credential
func (l *Lifecycle) State() core.SessionState {
	if _, ok := l.store.Get(); ok {
		return core.StateAuthenticated
	}
	return core.StateUnauthenticated
}

// Login exchanges user credentials for a credential pair. On failure the
// session stays as it was and the server reason is returned without retry.
func (l *Lifecycle) Login(ctx context.Context, email, password string) error {
	cred, err := l.api.Login(ctx, email, password)
	if err != nil {
		l.log.WithError(err).Debug("Login rejected")
		return err
	}
	cred.IssuedAt = l.clock.Now()

	l.mu.Lock()
	err = l.store.Set(cred)
	if err == nil {
		l.gen++
	}
	l.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	l.log.Info("Logged in")
	l.publish(ctx, core.EventLoggedIn, "")
	return nil
}

// Logout drops the local session unconditionally. The server is told on a
// best-effort basis. Logging out of an empty session is a no-op.
func (l *Lifecycle) Logout(ctx context.Context) error {
	cred, ended, err := l.end(nil)
	if !ended {
		return err
	}

	if notifyErr := l.api.Logout(ctx, cred.RefreshToken); notifyErr != nil {
		l.log.WithError(notifyErr).Warn("Failed to notify server of logout")
	}

	l.log.Info("Logged out")
	l.publish(ctx, core.EventLoggedOut, "")
	return err
}

// teardownOnRefreshFailure is called by the Coordinator only. It has the
// effect of Logout, minus the server notification, and signals expiry. It is
// a no-op when the session already moved past gen.
func (l *Lifecycle) teardownOnRefreshFailure(ctx context.Context, gen uint64, cause error) {
	if !l.expire(ctx, &gen, cause) {
		l.log.WithError(cause).Debug("Refresh failed for a session that already ended")
	}
}

// expire ends the session with the expired signal. A nil gen ends whatever
// session is current.
func (l *Lifecycle) expire(ctx context.Context, gen *uint64, cause error) bool {
	_, ended, err := l.end(gen)
	if err != nil {
		l.log.WithError(err).Warn("Failed to clear credential store")
	}
	if !ended {
		return false
	}

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	l.log.WithError(cause).Warn("Session expired")
	l.publish(ctx, core.EventExpired, reason)
	return true
}

// end clears the store if a session is present and gen (when given) is
// current. The local state is dropped even if clearing reports an error.
func (l *Lifecycle) end(gen *uint64) (core.Credential, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != nil && *gen != l.gen {
		return core.Credential{}, false, nil
	}

	cred, ok := l.store.Get()
	if !ok {
		return core.Credential{}, false, nil
	}

	err := l.store.Clear()
	l.gen++
	return cred, true, err
}

// generation returns the current generation
func (l *Lifecycle) generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

// commitRefresh stores a refreshed pair if gen is still current
func (l *Lifecycle) commitRefresh(gen uint64, cred core.Credential) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.gen {
		return fmt.Errorf("%w: session ended during refresh", core.ErrSessionExpired)
	}
	if _, ok := l.store.Get(); !ok {
		return fmt.Errorf("%w: session ended during refresh", core.ErrSessionExpired)
	}

	return l.store.Set(cred)
}

func (l *Lifecycle) publish(ctx context.Context, kind core.SessionEventKind, reason string) {
	if l.events == nil {
		return
	}

	event := core.SessionEvent{Kind: kind, At: l.clock.Now(), Reason: reason}
	if err := l.events.PublishSession(context.WithoutCancel(ctx), event); err != nil {
		l.log.WithError(err).WithField("kind", kind).Warn("Failed to publish session event")
	}
}

// isSessionEnded reports whether err means the session is gone
func isSessionEnded(err error) bool {
	return errors.Is(err, core.ErrSessionExpired) || errors.Is(err, core.ErrNotAuthenticated)
}
