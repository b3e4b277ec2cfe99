package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/layer-3/pricewatch/core"
	"github.com/layer-3/pricewatch/ports"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// refreshKey is the single singleflight key: there is one session per
// process, so at most one refresh episode can be in flight.
const refreshKey = "refresh"

// Coordinator runs the refresh protocol at most once per failure episode.
//
// The first caller of Refresh becomes the initiator and performs the one
// network exchange; callers arriving while it is in flight wait for the same
// result. The episode is forgotten the instant it resolves.
type Coordinator struct {
	api       ports.AuthAPI
	store     ports.CredentialStore
	lifecycle *Lifecycle
	clock     clockwork.Clock
	timeout   time.Duration
	log       log.FieldLogger

	group     singleflight.Group
	exchanges atomic.Int64
}

// NewCoordinator creates a refresh coordinator
func NewCoordinator(api ports.AuthAPI, store ports.CredentialStore, lifecycle *Lifecycle, clock clockwork.Clock, timeout time.Duration, logger log.FieldLogger) *Coordinator {
	return &Coordinator{
		api:       api,
		store:     store,
		lifecycle: lifecycle,
		clock:     clock,
		timeout:   timeout,
		log:       logger,
	}
}

// Refresh returns a credential newer than stale, the one a request was
// rejected with. All concurrent callers observe the same outcome. Cancelling
// ctx releases only this caller; the episode runs to completion.
func (c *Coordinator) Refresh(ctx context.Context, stale core.Credential) (core.Credential, error) {
	ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
		return c.runEpisode(context.WithoutCancel(ctx), stale)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return core.Credential{}, res.Err
		}
		return res.Val.(core.Credential), nil
	case <-ctx.Done():
		return core.Credential{}, ctx.Err()
	}
}

// Refreshes returns the number of refresh exchanges issued so far
func (c *Coordinator) Refreshes() int64 {
	return c.exchanges.Load()
}

// runEpisode is executed by the initiator only
func (c *Coordinator) runEpisode(ctx context.Context, stale core.Credential) (core.Credential, error) {
	gen := c.lifecycle.generation()

	current, ok := c.store.Get()
	if !ok {
		// The session ended after the request was sent.
		return core.Credential{}, fmt.Errorf("%w: %w", core.ErrSessionExpired, core.ErrNotAuthenticated)
	}

	// An earlier episode already rotated the pair after this request was sent.
	if current.AccessToken != stale.AccessToken {
		c.log.Debug("Credential already refreshed, skipping exchange")
		return current, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.exchanges.Add(1)
	next, err := c.api.Refresh(ctx, current.RefreshToken)
	if err != nil {
		c.log.WithError(err).Error("Refresh failed")
		c.lifecycle.teardownOnRefreshFailure(ctx, gen, err)
		return core.Credential{}, fmt.Errorf("%w: %w", core.ErrSessionExpired, err)
	}
	next.IssuedAt = c.clock.Now()

	if err := c.lifecycle.commitRefresh(gen, next); err != nil {
		c.log.WithError(err).Error("Failed to store refreshed credential")
		c.lifecycle.teardownOnRefreshFailure(ctx, gen, err)
		if isSessionEnded(err) {
			return core.Credential{}, err
		}
		return core.Credential{}, fmt.Errorf("%w: %w", core.ErrSessionExpired, err)
	}

	c.log.Debug("Credential refreshed")
	return next, nil
}
