package session

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/layer-3/pricewatch/adapters/credstore"
	"github.com/layer-3/pricewatch/core"
	"github.com/layer-3/pricewatch/ports"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

var (
	pair1 = core.Credential{AccessToken: "A1", RefreshToken: "R1"}
	pair2 = core.Credential{AccessToken: "A2", RefreshToken: "R2"}
)

type mockAuthAPI struct {
	login    func(ctx context.Context, email, password string) (core.Credential, error)
	refresh  func(ctx context.Context, refreshToken string) (core.Credential, error)
	logout   func(ctx context.Context, refreshToken string) error
	register func(ctx context.Context, reg core.Registration) (core.Profile, error)

	refreshCalls atomic.Int32
	logoutCalls  atomic.Int32
}

func (m *mockAuthAPI) Login(ctx context.Context, email, password string) (core.Credential, error) {
	if m.login == nil {
		return pair1, nil
	}
	return m.login(ctx, email, password)
}

func (m *mockAuthAPI) Refresh(ctx context.Context, refreshToken string) (core.Credential, error) {
	m.refreshCalls.Add(1)
	if m.refresh == nil {
		return pair2, nil
	}
	return m.refresh(ctx, refreshToken)
}

func (m *mockAuthAPI) Logout(ctx context.Context, refreshToken string) error {
	m.logoutCalls.Add(1)
	if m.logout == nil {
		return nil
	}
	return m.logout(ctx, refreshToken)
}

func (m *mockAuthAPI) Register(ctx context.Context, reg core.Registration) (core.Profile, error) {
	if m.register == nil {
		return core.Profile{ID: 1, Email: reg.Email}, nil
	}
	return m.register(ctx, reg)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []core.SessionEvent
}

func (r *eventRecorder) PublishSession(_ context.Context, event core.SessionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) kinds() []core.SessionEventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]core.SessionEventKind, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// resourceServer answers 200 to requests bearing the accepted token and 401
// to everything else.
type resourceServer struct {
	*httptest.Server

	mu       sync.Mutex
	accepted string
	bodies   []string

	hits         atomic.Int32
	unauthorized atomic.Int32
}

func newResourceServer(t *testing.T, accepted string) *resourceServer {
	t.Helper()

	rs := &resourceServer{accepted: accepted}
	rs.Server = httptest.NewServer(http.HandlerFunc(rs.serve))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *resourceServer) accept(token string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.accepted = token
}

func (rs *resourceServer) recordedBodies() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]string(nil), rs.bodies...)
}

func (rs *resourceServer) serve(w http.ResponseWriter, r *http.Request) {
	rs.hits.Add(1)
	body, _ := io.ReadAll(r.Body)

	rs.mu.Lock()
	rs.bodies = append(rs.bodies, string(body))
	accepted := rs.accepted
	rs.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.Header.Get("Authorization") != "Bearer "+accepted {
		rs.unauthorized.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Could not validate credentials"}`))
		return
	}

	if r.URL.Path == "/auth/me" {
		_ = json.NewEncoder(w).Encode(core.Profile{ID: 7, Email: "jane@example.com", IsActive: true})
		return
	}
	_, _ = w.Write([]byte(`{"ok":true}`))
}

// waitFor blocks until cond holds or the deadline passes
func waitFor(cond func() bool) {
	deadline := time.Now().Add(5 * time.Second)
	for !cond() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
}

type fixture struct {
	client *Client
	store  ports.CredentialStore
	api    *mockAuthAPI
	events *eventRecorder
	hook   *test.Hook
	clock  clockwork.FakeClock
}

func newFixture(t *testing.T, baseURL string, api *mockAuthAPI) *fixture {
	t.Helper()

	logger, hook := test.NewNullLogger()
	f := &fixture{
		store:  credstore.NewMemoryStore(),
		api:    api,
		events: &eventRecorder{},
		hook:   hook,
		clock:  clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
	}

	client, err := New(Config{
		BaseURL: baseURL,
		Store:   f.store,
		API:     api,
		Events:  f.events,
		Clock:   f.clock,
		Logger:  logger,
	})
	require.NoError(t, err)
	f.client = client
	return f
}

func (f *fixture) seed(t *testing.T, cred core.Credential) {
	t.Helper()
	require.NoError(t, f.store.Set(cred))
}

func (f *fixture) get(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := f.client.HTTPClient().Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (f *fixture) post(ctx context.Context, url, body string) (int, error) {
	// A plain io.Reader leaves GetBody unset.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, io.NopCloser(strings.NewReader(body)))
	if err != nil {
		return 0, err
	}
	resp, err := f.client.HTTPClient().Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
