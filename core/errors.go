package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Client session errors
	ErrSessionExpired       = errors.New("session expired")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrRefreshRejected      = errors.New("refresh token rejected")
	ErrMalformedResponse    = errors.New("malformed server response")
	ErrStoreOperationFailed = errors.New("store operation failed")
	ErrInvalidConfig        = errors.New("invalid configuration")

	// Login and account errors, shared with the reference server
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrAccountExists      = errors.New("account already exists")
	ErrPhoneTaken         = errors.New("phone number already registered")

	// Catalogue errors, raised by the reference server
	ErrAlreadyTracked         = errors.New("product already tracked")
	ErrTrackingLimit          = errors.New("tracking limit reached")
	ErrUnsupportedMarketplace = errors.New("unsupported marketplace")
	ErrScrapeFailed           = errors.New("could not scrape this product")

	// Token errors, raised by the reference server
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenInvalidated = errors.New("token has been invalidated")
	ErrInvalidToken     = errors.New("invalid token")
	ErrNotFound         = errors.New("not found")
)

// APIError is a non-2xx answer from the server. Detail carries the
// user-facing reason from the {"detail": ...} body when present.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

// Is maps well-known statuses onto sentinel errors
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}
