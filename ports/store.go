package ports

import (
	"context"
	"time"

	"github.com/layer-3/pricewatch/core"
)

// CredentialStore holds the client's current credential pair.
// Get never blocks on I/O; Set and Clear replace the pair as one unit.
type CredentialStore interface {
	Get() (core.Credential, bool)
	Set(cred core.Credential) error
	Clear() error
}

// RevocationStore tracks refresh tokens the reference server no longer honours
type RevocationStore interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)
	// ConsumeToken invalidates tokenID and reports whether this call was
	// the one that did it. A second consumer of the same id gets false.
	ConsumeToken(ctx context.Context, tokenID string, expiry time.Duration) (bool, error)
}
