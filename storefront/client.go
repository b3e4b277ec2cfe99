// Package storefront wraps the price-tracking API. Every call goes through
// the session dispatcher; none of them retry on their own.
package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/layer-3/pricewatch/adapters/authapi"
	"github.com/layer-3/pricewatch/core"
	log "github.com/sirupsen/logrus"
)

// Session is the part of session.Client the wrappers need
type Session interface {
	R(ctx context.Context) *resty.Request
	Me(ctx context.Context) (core.Profile, error)
}

// Client calls the storefront endpoints on behalf of the logged in user
type Client struct {
	session Session
	log     log.FieldLogger
}

// New creates a storefront client over an authenticated session
func New(session Session, logger log.FieldLogger) *Client {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Client{session: session, log: logger.WithField("component", "storefront")}
}

// Me returns the current user
func (c *Client) Me(ctx context.Context) (core.Profile, error) {
	return c.session.Me(ctx)
}

// UpdateProfile changes the current user's details
func (c *Client) UpdateProfile(ctx context.Context, update core.ProfileUpdate) (core.Profile, error) {
	var profile core.Profile
	resp, err := c.session.R(ctx).SetBody(update).Put("/auth/me")
	return profile, c.decode(resp, err, &profile)
}

// ListProducts returns one page of the catalogue
func (c *Client) ListProducts(ctx context.Context, q core.ProductQuery) ([]core.Product, error) {
	req := c.session.R(ctx)
	if q.Page > 0 {
		req.SetQueryParam("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(q.Limit))
	}
	if q.Category != "" {
		req.SetQueryParam("category", q.Category)
	}
	if q.Marketplace != "" {
		req.SetQueryParam("marketplace", string(q.Marketplace))
	}
	if q.Search != "" {
		req.SetQueryParam("search", q.Search)
	}

	var products []core.Product
	resp, err := req.Get("/products")
	return products, c.decode(resp, err, &products)
}

// SearchProducts returns products whose name or description contains q
func (c *Client) SearchProducts(ctx context.Context, q string) ([]core.Product, error) {
	var products []core.Product
	resp, err := c.session.R(ctx).SetQueryParam("q", q).Get("/products/search")
	return products, c.decode(resp, err, &products)
}

// ScrapeProduct adds the product behind a marketplace URL to the catalogue.
// An empty marketplace is guessed from the URL.
func (c *Client) ScrapeProduct(ctx context.Context, req core.ScrapeRequest) (core.Product, error) {
	if req.Marketplace == "" {
		req.Marketplace = core.MarketplaceOf(req.URL)
	}

	var product core.Product
	resp, err := c.session.R(ctx).SetBody(req).Post("/products/scrape")
	return product, c.decode(resp, err, &product)
}

// GetProduct returns a single product
func (c *Client) GetProduct(ctx context.Context, id string) (core.Product, error) {
	var product core.Product
	resp, err := c.session.R(ctx).SetPathParam("id", id).Get("/products/{id}")
	return product, c.decode(resp, err, &product)
}

// TrackProduct adds a product to the watch list
func (c *Client) TrackProduct(ctx context.Context, track core.TrackRequest) (core.TrackedProduct, error) {
	var tracked core.TrackedProduct
	resp, err := c.session.R(ctx).SetBody(track).Post("/products/track")
	return tracked, c.decode(resp, err, &tracked)
}

// ListTracked returns the watch list
func (c *Client) ListTracked(ctx context.Context) ([]core.TrackedProduct, error) {
	var tracked []core.TrackedProduct
	resp, err := c.session.R(ctx).Get("/products/tracked")
	return tracked, c.decode(resp, err, &tracked)
}

// Untrack removes an entry from the watch list
func (c *Client) Untrack(ctx context.Context, trackedID string) error {
	resp, err := c.session.R(ctx).SetPathParam("id", trackedID).Delete("/products/tracked/{id}")
	return c.decode(resp, err, nil)
}

// ListAlerts returns the user's alerts
func (c *Client) ListAlerts(ctx context.Context) ([]core.Alert, error) {
	var alerts []core.Alert
	resp, err := c.session.R(ctx).Get("/alerts")
	return alerts, c.decode(resp, err, &alerts)
}

// CreateAlert registers a new alert
func (c *Client) CreateAlert(ctx context.Context, alert core.NewAlert) (core.Alert, error) {
	var created core.Alert
	resp, err := c.session.R(ctx).SetBody(alert).Post("/alerts")
	return created, c.decode(resp, err, &created)
}

// UpdateAlert changes an existing alert
func (c *Client) UpdateAlert(ctx context.Context, id string, update core.AlertUpdate) (core.Alert, error) {
	var alert core.Alert
	resp, err := c.session.R(ctx).SetPathParam("id", id).SetBody(update).Put("/alerts/{id}")
	return alert, c.decode(resp, err, &alert)
}

// TestAlert asks the server to send a test notification for an alert
func (c *Client) TestAlert(ctx context.Context, id string) (core.AlertTestResult, error) {
	var result core.AlertTestResult
	resp, err := c.session.R(ctx).SetPathParam("id", id).Post("/alerts/{id}/test")
	return result, c.decode(resp, err, &result)
}

// DeleteAlert removes an alert
func (c *Client) DeleteAlert(ctx context.Context, id string) error {
	resp, err := c.session.R(ctx).SetPathParam("id", id).Delete("/alerts/{id}")
	return c.decode(resp, err, nil)
}

// decode turns a response into out. Transport errors, including an expired
// session, are passed through unchanged.
func (c *Client) decode(resp *resty.Response, err error, out interface{}) error {
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		apiErr := authapi.ErrorFromResponse(resp)
		c.log.WithField("status", apiErr.Status).WithField("path", resp.Request.URL).Debug("Request failed")
		return apiErr
	}
	if out == nil || resp.StatusCode() == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%w: %v", core.ErrMalformedResponse, err)
	}
	return nil
}
