package ports

import (
	"context"

	"github.com/layer-3/pricewatch/core"
)

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishLogout(ctx context.Context, accountID int64, tokenID string) error
}

// SessionEvents notifies the UI collaborator of session transitions
type SessionEvents interface {
	PublishSession(ctx context.Context, event core.SessionEvent) error
}
