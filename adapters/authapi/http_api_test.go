package authapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/layer-3/pricewatch/core"
	"github.com/stretchr/testify/require"
)

func newAPI(t *testing.T, h http.HandlerFunc) *HTTPAuthAPI {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPAuthAPI(srv.URL, nil)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestLoginSendsForm(t *testing.T) {
	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/login", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "jane@example.com", r.PostForm.Get("username"))
		require.Equal(t, "secret", r.PostForm.Get("password"))
		require.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `{"access_token":"a1","refresh_token":"r1","token_type":"bearer"}`)
	})

	cred, err := api.Login(context.Background(), "jane@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, "a1", cred.AccessToken)
	require.Equal(t, "r1", cred.RefreshToken)
}

func TestLoginErrors(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		body   string
		want   error
		detail string
	}{
		{"bad credentials", http.StatusUnauthorized, `{"detail":"Incorrect email or password"}`, core.ErrInvalidCredentials, "Incorrect email or password"},
		{"disabled", http.StatusForbidden, `{"detail":"Inactive user"}`, core.ErrAccountDisabled, "Inactive user"},
		{"validation", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body"],"msg":"field required"}]}`, nil, "field required"},
		{"server", http.StatusInternalServerError, `oops`, nil, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			})

			_, err := api.Login(context.Background(), "jane@example.com", "secret")
			if tc.want != nil {
				require.ErrorIs(t, err, tc.want)
			}
			var apiErr *core.APIError
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tc.status, apiErr.Status)
			require.Equal(t, tc.detail, apiErr.Detail)
		})
	}
}

func TestRefresh(t *testing.T) {
	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/refresh", r.URL.Path)
		var req refreshRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.RefreshToken != "r1" {
			writeJSON(w, http.StatusUnauthorized, `{"detail":"Invalid refresh token"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"access_token":"a2","refresh_token":"r2","token_type":"bearer"}`)
	})

	cred, err := api.Refresh(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, core.Credential{AccessToken: "a2", RefreshToken: "r2"}, cred)

	_, err = api.Refresh(context.Background(), "stale")
	require.ErrorIs(t, err, core.ErrRefreshRejected)
	require.ErrorIs(t, err, core.ErrUnauthorized)
	require.Contains(t, err.Error(), "Invalid refresh token")
}

func TestRefreshMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"not json":      `<html>`,
		"missing token": `{"access_token":"a2"}`,
	} {
		t.Run(name, func(t *testing.T) {
			api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, body)
			})
			_, err := api.Refresh(context.Background(), "r1")
			require.ErrorIs(t, err, core.ErrMalformedResponse)
		})
	}
}

func TestRefreshNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := NewHTTPAuthAPI(srv.URL, nil).Refresh(context.Background(), "r1")
	require.Error(t, err)
	require.NotErrorIs(t, err, core.ErrRefreshRejected)
}

func TestLogoutAndRegister(t *testing.T) {
	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/logout":
			writeJSON(w, http.StatusOK, `{"message":"Logged out"}`)
		case "/auth/register":
			var reg core.Registration
			require.NoError(t, json.NewDecoder(r.Body).Decode(&reg))
			if reg.Email == "taken@example.com" {
				writeJSON(w, http.StatusBadRequest, `{"detail":"Email already registered"}`)
				return
			}
			writeJSON(w, http.StatusCreated, `{"id":7,"email":"`+reg.Email+`","is_active":true}`)
		}
	})
	ctx := context.Background()

	require.NoError(t, api.Logout(ctx, "r1"))

	profile, err := api.Register(ctx, core.Registration{Email: "joe@example.com", Password: "secret-pass"})
	require.NoError(t, err)
	require.EqualValues(t, 7, profile.ID)
	require.True(t, profile.IsActive)

	_, err = api.Register(ctx, core.Registration{Email: "taken@example.com"})
	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Email already registered", apiErr.Detail)
}

func TestDetail(t *testing.T) {
	require.Equal(t, "boom", Detail([]byte(`{"detail":"boom"}`)))
	require.Equal(t, "bad", Detail([]byte(`{"detail":[{"msg":"bad"},{"msg":"worse"}]}`)))
	require.Equal(t, "legacy", Detail([]byte(`{"error":"legacy"}`)))
	require.Empty(t, Detail([]byte(`not json`)))
}
