package authapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/layer-3/pricewatch/core"
	"github.com/tidwall/gjson"
)

const defaultHTTPTimeout = 15 * time.Second

// HTTPAuthAPI implements ports.AuthAPI against the /auth endpoints.
// It uses its own plain HTTP client: none of these calls carry a bearer token.
type HTTPAuthAPI struct {
	client *resty.Client
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// NewHTTPAuthAPI creates an auth API client for baseURL.
// A nil hc gets a client with a 15s timeout.
func NewHTTPAuthAPI(baseURL string, hc *http.Client) *HTTPAuthAPI {
	if hc == nil {
		hc = &http.Client{Timeout: defaultHTTPTimeout}
	}

	client := resty.NewWithClient(hc).
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")

	return &HTTPAuthAPI{client: client}
}

// Login exchanges email and password for a credential pair
func (a *HTTPAuthAPI) Login(ctx context.Context, email, password string) (core.Credential, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username": email,
			"password": password,
		}).
		Post("/auth/login")
	if err != nil {
		return core.Credential{}, fmt.Errorf("login request failed: %w", err)
	}

	if !resp.IsSuccess() {
		apiErr := ErrorFromResponse(resp)
		switch resp.StatusCode() {
		case http.StatusUnauthorized:
			return core.Credential{}, fmt.Errorf("%w: %w", core.ErrInvalidCredentials, apiErr)
		case http.StatusForbidden:
			return core.Credential{}, fmt.Errorf("%w: %w", core.ErrAccountDisabled, apiErr)
		}
		return core.Credential{}, apiErr
	}

	return decodeTokens(resp.Body())
}

// Refresh exchanges a refresh token for a new pair. Every non-2xx answer is
// a rejection.
func (a *HTTPAuthAPI) Refresh(ctx context.Context, refreshToken string) (core.Credential, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(refreshRequest{RefreshToken: refreshToken}).
		Post("/auth/refresh")
	if err != nil {
		return core.Credential{}, fmt.Errorf("refresh request failed: %w", err)
	}

	if !resp.IsSuccess() {
		return core.Credential{}, fmt.Errorf("%w: %w", core.ErrRefreshRejected, ErrorFromResponse(resp))
	}

	return decodeTokens(resp.Body())
}

// Logout asks the server to revoke the refresh token
func (a *HTTPAuthAPI) Logout(ctx context.Context, refreshToken string) error {
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(refreshRequest{RefreshToken: refreshToken}).
		Post("/auth/logout")
	if err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}

	if !resp.IsSuccess() {
		return ErrorFromResponse(resp)
	}

	return nil
}

// Register creates a new account
func (a *HTTPAuthAPI) Register(ctx context.Context, reg core.Registration) (core.Profile, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(reg).
		Post("/auth/register")
	if err != nil {
		return core.Profile{}, fmt.Errorf("register request failed: %w", err)
	}

	if !resp.IsSuccess() {
		return core.Profile{}, ErrorFromResponse(resp)
	}

	var profile core.Profile
	if err := json.Unmarshal(resp.Body(), &profile); err != nil {
		return core.Profile{}, fmt.Errorf("%w: %v", core.ErrMalformedResponse, err)
	}

	return profile, nil
}

// decodeTokens fails closed: a body without both tokens is malformed
func decodeTokens(body []byte) (core.Credential, error) {
	var tokens tokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return core.Credential{}, fmt.Errorf("%w: %v", core.ErrMalformedResponse, err)
	}

	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return core.Credential{}, fmt.Errorf("%w: token pair incomplete", core.ErrMalformedResponse)
	}

	return core.Credential{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, nil
}

// ErrorFromResponse builds an APIError from a non-2xx response
func ErrorFromResponse(resp *resty.Response) *core.APIError {
	return &core.APIError{
		Status: resp.StatusCode(),
		Detail: Detail(resp.Body()),
	}
}

// Detail extracts the user-facing reason from an error body. Validation
// errors carry a list of {"msg": ...} objects instead of a string.
func Detail(body []byte) string {
	detail := gjson.GetBytes(body, "detail")
	switch {
	case detail.IsArray():
		return detail.Get("0.msg").String()
	case detail.Exists():
		return detail.String()
	}
	return gjson.GetBytes(body, "error").String()
}
