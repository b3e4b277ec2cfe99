package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/layer-3/pricewatch/adapters/authapi"
	"github.com/layer-3/pricewatch/core"
	"github.com/layer-3/pricewatch/ports"
	log "github.com/sirupsen/logrus"
)

// Client is the authenticated session of the application. One instance is
// created per process and handed to everything that talks to the API.
type Client struct {
	store       ports.CredentialStore
	api         ports.AuthAPI
	lifecycle   *Lifecycle
	coordinator *Coordinator
	dispatcher  *Dispatcher
	http        *http.Client
	rest        *resty.Client
	log         log.FieldLogger
}

// New wires the store, lifecycle, coordinator and dispatcher together
func New(cfg Config) (*Client, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, err
	}

	api := cfg.API
	if api == nil {
		// Auth calls never go through the dispatcher.
		api = authapi.NewHTTPAuthAPI(cfg.BaseURL, &http.Client{
			Transport: cfg.HTTPClient.Transport,
			Timeout:   cfg.HTTPClient.Timeout,
		})
	}

	logger := cfg.Logger.WithField("component", "session")
	lifecycle := NewLifecycle(cfg.Store, api, cfg.Events, cfg.Clock, logger)
	coordinator := NewCoordinator(api, cfg.Store, lifecycle, cfg.Clock, cfg.RefreshTimeout, logger)
	dispatcher := NewDispatcher(cfg.HTTPClient.Transport, cfg.Store, coordinator, logger)

	hc := &http.Client{
		Transport:     dispatcher,
		CheckRedirect: cfg.HTTPClient.CheckRedirect,
		Jar:           cfg.HTTPClient.Jar,
		Timeout:       cfg.HTTPClient.Timeout,
	}

	rest := resty.NewWithClient(hc).
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json")

	return &Client{
		store:       cfg.Store,
		api:         api,
		lifecycle:   lifecycle,
		coordinator: coordinator,
		dispatcher:  dispatcher,
		http:        hc,
		rest:        rest,
		log:         logger,
	}, nil
}

// HTTPClient returns a client whose requests carry the session credential
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Transport returns the request dispatcher
func (c *Client) Transport() http.RoundTripper {
	return c.dispatcher
}

// R starts an authenticated request against the API root
func (c *Client) R(ctx context.Context) *resty.Request {
	return c.rest.R().SetContext(ctx)
}

// State reports whether a credential is held
func (c *Client) State() core.SessionState {
	return c.lifecycle.State()
}

// Refreshes returns the number of refresh exchanges issued so far
func (c *Client) Refreshes() int64 {
	return c.coordinator.Refreshes()
}

// Login authenticates and returns the profile of the logged in user
func (c *Client) Login(ctx context.Context, email, password string) (core.Profile, error) {
	if err := c.lifecycle.Login(ctx, email, password); err != nil {
		return core.Profile{}, err
	}
	return c.profile(ctx)
}

// Logout ends the session. It never fails because the server is unreachable.
func (c *Client) Logout(ctx context.Context) error {
	return c.lifecycle.Logout(ctx)
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, reg core.Registration) (core.Profile, error) {
	return c.api.Register(ctx, reg)
}

// Restore checks a credential found at startup against the server.
// A transient failure keeps the session; a rejected one ends it.
func (c *Client) Restore(ctx context.Context) (core.Profile, error) {
	if _, ok := c.store.Get(); !ok {
		return core.Profile{}, core.ErrNotAuthenticated
	}
	return c.profile(ctx)
}

// Me fetches the current user
func (c *Client) Me(ctx context.Context) (core.Profile, error) {
	resp, err := c.R(ctx).Get("/auth/me")
	if err != nil {
		return core.Profile{}, err
	}
	if !resp.IsSuccess() {
		return core.Profile{}, authapi.ErrorFromResponse(resp)
	}

	var profile core.Profile
	if err := json.Unmarshal(resp.Body(), &profile); err != nil {
		return core.Profile{}, fmt.Errorf("%w: %v", core.ErrMalformedResponse, err)
	}
	return profile, nil
}

// profile fetches the current user and ends the session if the server
// still refuses it after the refresh and replay.
func (c *Client) profile(ctx context.Context) (core.Profile, error) {
	gen := c.lifecycle.generation()
	profile, err := c.Me(ctx)
	if errors.Is(err, core.ErrUnauthorized) {
		// A login that completed meanwhile is not the session that was refused.
		c.lifecycle.expire(ctx, &gen, err)
	}
	return profile, err
}
