package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/layer-3/pricewatch/adapters/credstore"
	"github.com/layer-3/pricewatch/core"
	"github.com/layer-3/pricewatch/ports"
	log "github.com/sirupsen/logrus"
)

const (
	defaultRefreshTimeout = 15 * time.Second
	defaultHTTPTimeout    = 30 * time.Second
)

// Config configures a session Client
type Config struct {
	// BaseURL is the storefront API root, e.g. http://localhost:8000/api/v1
	BaseURL string

	// Store holds the credential. Defaults to an in-memory store.
	Store ports.CredentialStore
	// API is the server contract. Defaults to the HTTP implementation at BaseURL.
	API ports.AuthAPI
	// Events receives session transitions. Optional.
	Events ports.SessionEvents

	Clock  clockwork.Clock
	Logger log.FieldLogger

	// HTTPClient provides the underlying transport and timeout.
	HTTPClient *http.Client
	// RefreshTimeout bounds a single refresh exchange.
	RefreshTimeout time.Duration
}

// CheckAndSetDefaults validates the config and fills in missing values
func (c *Config) CheckAndSetDefaults() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: missing required value base_url", core.ErrInvalidConfig)
	}
	if c.Store == nil {
		c.Store = credstore.NewMemoryStore()
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Logger == nil {
		c.Logger = log.StandardLogger()
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if c.RefreshTimeout == 0 {
		c.RefreshTimeout = defaultRefreshTimeout
	}
	if c.RefreshTimeout < 0 {
		return fmt.Errorf("%w: refresh_timeout must be positive", core.ErrInvalidConfig)
	}
	return nil
}
