package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/layer-3/pricewatch/core"
	"github.com/layer-3/pricewatch/ports"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultAccessTTL  = 30 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour

	// minRevocationTTL keeps a record for tokens that already expired
	minRevocationTTL = time.Hour
)

// TokenPair is what login and refresh hand out
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService handles authentication business logic
type AuthService struct {
	tokenizer   ports.Tokenizer
	revocations ports.RevocationStore
	eventPub    ports.EventPublisher
	clock       clockwork.Clock
	log         log.FieldLogger

	accounts *accounts

	accessTTL  time.Duration
	refreshTTL time.Duration
	hashCost   int
}

// Option configures an AuthService
type Option func(*AuthService)

// WithTTL overrides the access and refresh token lifetimes
func WithTTL(access, refresh time.Duration) Option {
	return func(s *AuthService) {
		s.accessTTL = access
		s.refreshTTL = refresh
	}
}

// WithClock sets the clock used to stamp grants
func WithClock(clock clockwork.Clock) Option {
	return func(s *AuthService) { s.clock = clock }
}

// WithLogger sets the logger
func WithLogger(logger log.FieldLogger) Option {
	return func(s *AuthService) { s.log = logger }
}

// WithHashCost sets the bcrypt cost
func WithHashCost(cost int) Option {
	return func(s *AuthService) { s.hashCost = cost }
}

// NewAuthService creates a new authentication service
func NewAuthService(
	tokenizer ports.Tokenizer,
	revocations ports.RevocationStore,
	eventPub ports.EventPublisher,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		tokenizer:   tokenizer,
		revocations: revocations,
		eventPub:    eventPub,
		clock:       clockwork.NewRealClock(),
		log:         log.StandardLogger(),
		accounts:    newAccounts(),
		accessTTL:   defaultAccessTTL,
		refreshTTL:  defaultRefreshTTL,
		hashCost:    bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an active account
func (s *AuthService) Register(ctx context.Context, reg core.Registration) (core.Profile, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.hashCost)
	if err != nil {
		return core.Profile{}, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &core.Account{
		Email:                 reg.Email,
		FullName:              reg.FullName,
		Phone:                 reg.Phone,
		PasswordHash:          hash,
		PreferredNotification: core.NotifyEmail,
		Active:                true,
		CreatedAt:             s.clock.Now(),
	}
	if err := s.accounts.insert(account); err != nil {
		return core.Profile{}, err
	}

	s.log.WithField("account_id", account.ID).Info("Account registered")
	return core.ProfileFromAccount(account), nil
}

// SetActive enables or disables an account
func (s *AuthService) SetActive(accountID int64, active bool) error {
	_, err := s.accounts.update(accountID, func(a *core.Account) error {
		a.Active = active
		return nil
	})
	return err
}

// Login authenticates a user by email and password
func (s *AuthService) Login(ctx context.Context, email, password string) (TokenPair, error) {
	account, ok := s.accounts.byEmailAddr(email)
	if !ok {
		return TokenPair{}, core.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)); err != nil {
		return TokenPair{}, core.ErrInvalidCredentials
	}
	if !account.Active {
		return TokenPair{}, core.ErrAccountDisabled
	}

	return s.issue(account.ID)
}

// Refresh consumes the refresh token and issues a new pair. A refresh token
// can be exchanged once; replaying it is rejected.
func (s *AuthService) Refresh(ctx context.Context, refreshTokenStr string) (TokenPair, error) {
	grant, err := s.tokenizer.RefreshTokenToGrant(refreshTokenStr)
	if err != nil {
		return TokenPair{}, fmt.Errorf("invalid refresh token: %w", err)
	}

	remainingTime := grant.RefreshExpiry.Sub(s.clock.Now())
	if remainingTime <= 0 {
		return TokenPair{}, core.ErrTokenExpired
	}

	consumed, err := s.revocations.ConsumeToken(ctx, grant.RefreshID, remainingTime)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to consume refresh token: %w", err)
	}
	if !consumed {
		s.log.WithField("account_id", grant.AccountID).Warn("Refresh token reused")
		return TokenPair{}, core.ErrTokenInvalidated
	}

	account, ok := s.accounts.get(grant.AccountID)
	if !ok || !account.Active {
		return TokenPair{}, core.ErrAccountDisabled
	}

	return s.issue(account.ID)
}

// Logout invalidates a refresh token
func (s *AuthService) Logout(ctx context.Context, refreshTokenStr string) error {
	grant, err := s.tokenizer.RefreshTokenToGrant(refreshTokenStr)
	if err != nil {
		// Logging out with an expired token is still a logout.
		if errors.Is(err, core.ErrTokenExpired) {
			return nil
		}
		return fmt.Errorf("invalid refresh token: %w", err)
	}

	remainingTime := grant.RefreshExpiry.Sub(s.clock.Now())
	if remainingTime < minRevocationTTL {
		remainingTime = minRevocationTTL
	}

	if err := s.revocations.InvalidateToken(ctx, grant.RefreshID, remainingTime); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	if err := s.eventPub.PublishLogout(ctx, grant.AccountID, grant.RefreshID); err != nil {
		s.log.WithError(err).Warn("Failed to publish logout event")
	}

	return nil
}

// ValidateAccessToken returns the grant behind a valid access token. An
// access token dies with the refresh token it was issued with.
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Grant, error) {
	grant, err := s.tokenizer.AccessTokenToGrant(accessToken)
	if err != nil {
		return nil, err
	}

	if grant.RefreshID != "" {
		invalidated, err := s.revocations.IsTokenInvalidated(ctx, grant.RefreshID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token invalidation: %w", err)
		}
		if invalidated {
			return nil, core.ErrTokenInvalidated
		}
	}

	return grant, nil
}

// Profile returns the public view of an account
func (s *AuthService) Profile(accountID int64) (core.Profile, error) {
	account, ok := s.accounts.get(accountID)
	if !ok {
		return core.Profile{}, core.ErrNotFound
	}
	return core.ProfileFromAccount(&account), nil
}

// IsPremium reports whether an account has the premium tier
func (s *AuthService) IsPremium(accountID int64) bool {
	account, ok := s.accounts.get(accountID)
	return ok && account.Premium
}

// UpdateProfile applies the non-nil fields of update
func (s *AuthService) UpdateProfile(ctx context.Context, accountID int64, update core.ProfileUpdate) (core.Profile, error) {
	now := s.clock.Now()
	account, err := s.accounts.update(accountID, func(a *core.Account) error {
		if update.FullName != nil {
			a.FullName = *update.FullName
		}
		if update.Phone != nil {
			a.Phone = *update.Phone
		}
		if update.TelegramID != nil {
			a.TelegramID = *update.TelegramID
		}
		if update.WhatsAppNumber != nil {
			a.WhatsAppNumber = *update.WhatsAppNumber
		}
		if update.PreferredNotification != nil {
			a.PreferredNotification = *update.PreferredNotification
		}
		a.UpdatedAt = &now
		return nil
	})
	if err != nil {
		return core.Profile{}, err
	}
	return core.ProfileFromAccount(&account), nil
}

func (s *AuthService) issue(accountID int64) (TokenPair, error) {
	now := s.clock.Now()
	grant := &core.Grant{
		ID:            uuid.New().String(),
		AccountID:     accountID,
		IssuedAt:      now,
		RefreshExpiry: now.Add(s.refreshTTL),
		AccessExpiry:  now.Add(s.accessTTL),
		RefreshID:     uuid.New().String(),
	}

	accessToken, err := s.tokenizer.GrantToAccessToken(grant)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := s.tokenizer.GrantToRefreshToken(grant)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to create refresh token: %w", err)
	}

	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
