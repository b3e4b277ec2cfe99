package ports

import (
	"context"

	"github.com/layer-3/pricewatch/core"
)

// AuthAPI is the unauthenticated half of the server contract.
// Implementations must not route these calls through the session dispatcher.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (core.Credential, error)
	Refresh(ctx context.Context, refreshToken string) (core.Credential, error)
	Logout(ctx context.Context, refreshToken string) error
	Register(ctx context.Context, reg core.Registration) (core.Profile, error)
}
