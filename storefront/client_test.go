package storefront

import (
	"context"
	"errors"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/layer-3/pricewatch/adapters/credstore"
	"github.com/layer-3/pricewatch/adapters/events"
	"github.com/layer-3/pricewatch/adapters/revocation"
	"github.com/layer-3/pricewatch/adapters/tokenizer"
	"github.com/layer-3/pricewatch/core"
	"github.com/layer-3/pricewatch/ports"
	"github.com/layer-3/pricewatch/service"
	"github.com/layer-3/pricewatch/session"
	transport "github.com/layer-3/pricewatch/transport/http"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testEmail    = "jane@example.com"
	testPassword = "correct-horse"
	accessTTL    = time.Minute
)

// pageScraper names the product after the last path segment of its URL
type pageScraper struct{}

func (pageScraper) ScrapeProduct(_ context.Context, _ core.Marketplace, url string) (core.Product, error) {
	if strings.HasSuffix(url, "/unreadable") {
		return core.Product{}, errors.New("no product on page")
	}
	return core.Product{
		Name:         path.Base(url),
		CurrentPrice: decimal.RequireFromString("250"),
		Currency:     "USD",
		IsAvailable:  true,
	}, nil
}

type env struct {
	auth     *service.AuthService
	clock    clockwork.FakeClock
	store    ports.CredentialStore
	session  *session.Client
	client   *Client
	sessions <-chan *message.Message
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, events.NewLogrusAdapter(logger))
	t.Cleanup(func() { pubsub.Close() })
	publisher := events.NewWatermillPublisher(pubsub)
	sessions, err := pubsub.Subscribe(context.Background(), events.SessionTopic)
	require.NoError(t, err)

	auth := service.NewAuthService(
		tokenizer.NewJWTTokenizer(key, clock),
		revocation.NewMemoryStore(clock),
		publisher,
		service.WithClock(clock),
		service.WithLogger(logger),
		service.WithHashCost(bcrypt.MinCost),
		service.WithTTL(accessTTL, time.Hour),
	)
	catalog := service.NewCatalogService(clock, auth.IsPremium, service.SampleProducts(clock), service.WithScraper(pageScraper{}))

	srv := httptest.NewServer(transport.SetupRouter(auth, catalog, logger))
	t.Cleanup(srv.Close)

	_, err = auth.Register(context.Background(), core.Registration{
		Email:    testEmail,
		FullName: "Jane Doe",
		Phone:    "+22997000001",
		Password: testPassword,
	})
	require.NoError(t, err)

	store := credstore.NewMemoryStore()
	sc, err := session.New(session.Config{
		BaseURL: srv.URL,
		Store:   store,
		Events:  publisher,
		Clock:   clock,
		Logger:  logger,
	})
	require.NoError(t, err)

	return &env{
		auth:     auth,
		clock:    clock,
		store:    store,
		session:  sc,
		client:   New(sc, logger),
		sessions: sessions,
	}
}

func (e *env) login(t *testing.T) {
	t.Helper()
	profile, err := e.session.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, testEmail, profile.Email)
}

// nextEvent returns the next session event published
func (e *env) nextEvent(t *testing.T) core.SessionEvent {
	t.Helper()
	select {
	case msg := <-e.sessions:
		msg.Ack()
		event, err := events.DecodeSessionEvent(msg)
		require.NoError(t, err)
		return event
	case <-time.After(5 * time.Second):
		t.Fatal("no session event received")
		return core.SessionEvent{}
	}
}

func TestCatalogueFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.login(t)
	require.Equal(t, core.EventLoggedIn, e.nextEvent(t).Kind)

	products, err := e.client.ListProducts(ctx, core.ProductQuery{Marketplace: core.MarketplaceJumia})
	require.NoError(t, err)
	require.Len(t, products, 2)

	product, err := e.client.GetProduct(ctx, products[0].ID)
	require.NoError(t, err)
	require.True(t, products[0].CurrentPrice.Equal(product.CurrentPrice))

	target := decimal.RequireFromString("85000")
	tracked, err := e.client.TrackProduct(ctx, core.TrackRequest{ProductID: product.ID, TargetPrice: &target})
	require.NoError(t, err)
	require.True(t, target.Equal(*tracked.TargetPrice))

	_, err = e.client.TrackProduct(ctx, core.TrackRequest{ProductID: product.ID})
	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, core.ErrAlreadyTracked.Error(), apiErr.Detail)

	list, err := e.client.ListTracked(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NoError(t, e.client.Untrack(ctx, tracked.ID))

	threshold := decimal.RequireFromString("10")
	alert, err := e.client.CreateAlert(ctx, core.NewAlert{
		ProductID:      product.ID,
		AlertType:      core.AlertPercentageDrop,
		ThresholdValue: &threshold,
	})
	require.NoError(t, err)
	require.Equal(t, core.NotifyEmail, alert.NotificationChannel)

	inactive := false
	alert, err = e.client.UpdateAlert(ctx, alert.ID, core.AlertUpdate{IsActive: &inactive})
	require.NoError(t, err)
	require.False(t, alert.IsActive)

	alerts, err := e.client.ListAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.NoError(t, e.client.DeleteAlert(ctx, alert.ID))

	err = e.client.DeleteAlert(ctx, alert.ID)
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = e.client.GetProduct(ctx, "missing")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestProfile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.login(t)

	channel := core.NotifyWhatsApp
	profile, err := e.client.UpdateProfile(ctx, core.ProfileUpdate{PreferredNotification: &channel})
	require.NoError(t, err)
	require.Equal(t, core.NotifyWhatsApp, profile.PreferredNotificationChannel)

	profile, err = e.client.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, core.NotifyWhatsApp, profile.PreferredNotificationChannel)
}

func TestExpiredAccessTokenIsRefreshedOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.login(t)

	before, ok := e.store.Get()
	require.True(t, ok)

	e.clock.Advance(2 * accessTTL)

	const n = 8
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.client.ListAlerts(ctx)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	// The server rejects a reused refresh token, so any second exchange
	// would have ended the session.
	for err := range results {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, e.session.Refreshes())
	require.Equal(t, core.StateAuthenticated, e.session.State())

	after, ok := e.store.Get()
	require.True(t, ok)
	require.NotEqual(t, before.AccessToken, after.AccessToken)
	require.NotEqual(t, before.RefreshToken, after.RefreshToken)
}

func TestRevokedSessionExpires(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.login(t)
	require.Equal(t, core.EventLoggedIn, e.nextEvent(t).Kind)

	// Revoke the refresh token behind the client's back.
	cred, ok := e.store.Get()
	require.True(t, ok)
	require.NoError(t, e.auth.Logout(ctx, cred.RefreshToken))

	_, err := e.client.ListAlerts(ctx)
	require.ErrorIs(t, err, core.ErrSessionExpired)
	require.ErrorIs(t, err, core.ErrRefreshRejected)
	require.Equal(t, core.StateUnauthenticated, e.session.State())

	event := e.nextEvent(t)
	require.Equal(t, core.EventExpired, event.Kind)
	require.Contains(t, event.Reason, "Invalid refresh token")
}

func TestLogout(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.login(t)
	require.Equal(t, core.EventLoggedIn, e.nextEvent(t).Kind)

	cred, _ := e.store.Get()
	require.NoError(t, e.session.Logout(ctx))
	require.Equal(t, core.EventLoggedOut, e.nextEvent(t).Kind)

	// The server was told.
	_, err := e.auth.Refresh(ctx, cred.RefreshToken)
	require.ErrorIs(t, err, core.ErrTokenInvalidated)

	_, err = e.client.ListAlerts(ctx)
	require.ErrorIs(t, err, core.ErrUnauthorized)
	require.EqualValues(t, 0, e.session.Refreshes())
}

func TestLoginErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.session.Login(ctx, testEmail, "wrong-password")
	require.ErrorIs(t, err, core.ErrInvalidCredentials)

	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, core.ErrInvalidCredentials.Error(), apiErr.Detail)

	profile, err := e.auth.Profile(1)
	require.NoError(t, err)
	require.NoError(t, e.auth.SetActive(profile.ID, false))

	_, err = e.session.Login(ctx, testEmail, testPassword)
	require.ErrorIs(t, err, core.ErrAccountDisabled)
	require.Equal(t, core.StateUnauthenticated, e.session.State())
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.session.Register(ctx, core.Registration{Email: "not-an-email", FullName: "Joe", Phone: "97000002", Password: "secret-pass"})
	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	require.NotEmpty(t, apiErr.Detail)

	profile, err := e.session.Register(ctx, core.Registration{Email: "joe@example.com", FullName: "Joe", Phone: "97000002", Password: "secret-pass"})
	require.NoError(t, err)
	require.Equal(t, "joe@example.com", profile.Email)
	require.Equal(t, core.StateUnauthenticated, e.session.State())
}

func TestScrapeSearchAndTestAlert(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.login(t)

	product, err := e.client.ScrapeProduct(ctx, core.ScrapeRequest{URL: "https://www.amazon.com/dp/echo-dot"})
	require.NoError(t, err)
	require.Equal(t, core.MarketplaceAmazon, product.Marketplace)
	require.Equal(t, "echo-dot", product.Name)

	again, err := e.client.ScrapeProduct(ctx, core.ScrapeRequest{URL: "https://www.amazon.com/dp/echo-dot"})
	require.NoError(t, err)
	require.Equal(t, product.ID, again.ID)

	_, err = e.client.ScrapeProduct(ctx, core.ScrapeRequest{URL: "https://www.jumia.com.bj/unreadable"})
	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Contains(t, apiErr.Detail, core.ErrScrapeFailed.Error())

	found, err := e.client.SearchProducts(ctx, "echo")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, product.ID, found[0].ID)

	alert, err := e.client.CreateAlert(ctx, core.NewAlert{
		ProductID:           product.ID,
		AlertType:           core.AlertAvailability,
		NotificationChannel: core.NotifyWhatsApp,
	})
	require.NoError(t, err)

	result, err := e.client.TestAlert(ctx, alert.ID)
	require.NoError(t, err)
	require.Equal(t, alert.ID, result.AlertID)
	require.Equal(t, "Test notification sent via whatsapp", result.Message)

	_, err = e.client.TestAlert(ctx, "missing")
	require.ErrorIs(t, err, core.ErrNotFound)
}
