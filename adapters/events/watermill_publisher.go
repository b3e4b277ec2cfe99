package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/layer-3/pricewatch/core"
)

const (
	// LogoutTopic carries server-side logout notifications
	LogoutTopic = "pricewatch.auth.logout"

	// SessionTopic carries client session transitions for the UI
	SessionTopic = "pricewatch.session"
)

// LogoutEvent represents a logout event
type LogoutEvent struct {
	AccountID int64  `json:"account_id"`
	TokenID   string `json:"token_id"`
}

// WatermillPublisher implements ports.EventPublisher and ports.SessionEvents
// on top of any watermill publisher
type WatermillPublisher struct {
	publisher    message.Publisher
	logoutTopic  string
	sessionTopic string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{
		publisher:    publisher,
		logoutTopic:  LogoutTopic,
		sessionTopic: SessionTopic,
	}
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, accountID int64, tokenID string) error {
	event := LogoutEvent{
		AccountID: accountID,
		TokenID:   tokenID,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(tokenID, payload)
	msg.Metadata.Set("account_id", strconv.FormatInt(accountID, 10))
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.logoutTopic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// PublishSession publishes a session transition
func (p *WatermillPublisher) PublishSession(ctx context.Context, event core.SessionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set("kind", string(event.Kind))
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.sessionTopic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// DecodeSessionEvent parses a message published by PublishSession
func DecodeSessionEvent(msg *message.Message) (core.SessionEvent, error) {
	var event core.SessionEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return core.SessionEvent{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return event, nil
}
