package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/layer-3/pricewatch/core"
	"github.com/stretchr/testify/require"
)

func TestConfigRequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{BaseURL: "http://localhost:8000/api/v1"}
	require.NoError(t, cfg.CheckAndSetDefaults())

	require.NotNil(t, cfg.Store)
	require.NotNil(t, cfg.Clock)
	require.NotNil(t, cfg.Logger)
	require.NotNil(t, cfg.HTTPClient)
	require.Equal(t, defaultRefreshTimeout, cfg.RefreshTimeout)
}

func TestClientLoginReturnsProfile(t *testing.T) {
	rs := newResourceServer(t, "A1")
	f := newFixture(t, rs.URL, &mockAuthAPI{})

	profile, err := f.client.Login(context.Background(), "jane@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", profile.Email)
	require.Equal(t, core.StateAuthenticated, f.client.State())
}

func TestClientRestoreWithoutCredential(t *testing.T) {
	f := newFixture(t, "http://unused.invalid", &mockAuthAPI{})

	_, err := f.client.Restore(context.Background())
	require.ErrorIs(t, err, core.ErrNotAuthenticated)
}

func TestClientRestoreRefreshesStaleCredential(t *testing.T) {
	rs := newResourceServer(t, "A2")
	f := newFixture(t, rs.URL, &mockAuthAPI{})
	f.seed(t, pair1)

	profile, err := f.client.Restore(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 7, profile.ID)
	require.EqualValues(t, 1, f.client.Refreshes())
}

func TestClientRestoreRejectedEndsSession(t *testing.T) {
	rs := newResourceServer(t, "never")
	f := newFixture(t, rs.URL, &mockAuthAPI{})
	f.seed(t, pair1)

	_, err := f.client.Restore(context.Background())
	require.ErrorIs(t, err, core.ErrUnauthorized)

	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Could not validate credentials", apiErr.Detail)

	require.Equal(t, core.StateUnauthenticated, f.client.State())
	require.Equal(t, []core.SessionEventKind{core.EventExpired}, f.events.kinds())
}

func TestClientRestoreKeepsLoginMadeDuringCheck(t *testing.T) {
	pair9 := core.Credential{AccessToken: "A9", RefreshToken: "R9"}
	api := &mockAuthAPI{
		login: func(context.Context, string, string) (core.Credential, error) { return pair9, nil },
	}

	var f *fixture
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The replay of /auth/me races a fresh login.
		if hits.Add(1) == 2 {
			if err := f.client.lifecycle.Login(r.Context(), "jane@example.com", "secret"); err != nil {
				t.Error(err)
			}
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Could not validate credentials"}`))
	}))
	t.Cleanup(srv.Close)

	f = newFixture(t, srv.URL, api)
	f.seed(t, pair1)

	_, err := f.client.Restore(context.Background())
	require.ErrorIs(t, err, core.ErrUnauthorized)
	require.EqualValues(t, 2, hits.Load())

	cred, ok := f.store.Get()
	require.True(t, ok)
	require.Equal(t, "A9", cred.AccessToken)
	require.Equal(t, "R9", cred.RefreshToken)
	require.Equal(t, core.StateAuthenticated, f.client.State())
	require.Equal(t, []core.SessionEventKind{core.EventLoggedIn}, f.events.kinds())
}

func TestClientRestoreKeepsSessionOnNetworkFailure(t *testing.T) {
	rs := newResourceServer(t, "A1")
	rs.Close()

	f := newFixture(t, rs.URL, &mockAuthAPI{})
	f.seed(t, pair1)

	_, err := f.client.Restore(context.Background())
	require.Error(t, err)
	require.Equal(t, core.StateAuthenticated, f.client.State())
	require.Empty(t, f.events.kinds())
}

func TestClientScenarioRotatesPair(t *testing.T) {
	rs := newResourceServer(t, "A1")
	api := &mockAuthAPI{}
	api.refresh = func(_ context.Context, refreshToken string) (core.Credential, error) {
		require.Equal(t, "R1", refreshToken)
		rs.accept("A2")
		return pair2, nil
	}
	f := newFixture(t, rs.URL, api)

	_, err := f.client.Login(context.Background(), "jane@example.com", "secret")
	require.NoError(t, err)

	// A1 expires on the server side.
	rs.accept("expired")

	status, err := f.get(context.Background(), rs.URL+"/products")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)

	cred, ok := f.store.Get()
	require.True(t, ok)
	require.Equal(t, core.Credential{AccessToken: "A2", RefreshToken: "R2", IssuedAt: f.clock.Now()}, cred)
}

func TestClientRegisterDoesNotLogIn(t *testing.T) {
	f := newFixture(t, "http://unused.invalid", &mockAuthAPI{})

	profile, err := f.client.Register(context.Background(), core.Registration{Email: "new@example.com", Password: "secret123"})
	require.NoError(t, err)
	require.Equal(t, "new@example.com", profile.Email)
	require.Equal(t, core.StateUnauthenticated, f.client.State())
}
