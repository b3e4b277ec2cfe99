package core

import "time"

// Credential is the access/refresh pair held by a client session.
// A Credential is immutable: a refresh replaces it wholesale.
type Credential struct {
	AccessToken  string    // Bearer token attached to every request
	RefreshToken string    // Single-use token exchanged for a new pair
	IssuedAt     time.Time // When the client received the pair
}

// IsZero reports whether c is the empty credential
func (c Credential) IsZero() bool {
	return c.AccessToken == "" || c.RefreshToken == ""
}

// SessionState is derived from the presence of a credential in the store
type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Grant represents a session issued by the reference auth server
type Grant struct {
	ID            string    // Unique grant identifier
	AccountID     int64     // Account the grant belongs to
	IssuedAt      time.Time // When the grant was created
	RefreshExpiry time.Time // When the refresh capability expires
	AccessExpiry  time.Time // When the access capability expires
	RefreshID     string    // Unique identifier for the refresh token
}

// Account is a user record known to the reference auth server
type Account struct {
	ID           int64
	Email        string
	FullName     string
	Phone        string
	PasswordHash []byte

	TelegramID            string
	WhatsAppNumber        string
	PreferredNotification NotificationChannel

	Active    bool
	Premium   bool
	Verified  bool
	CreatedAt time.Time
	UpdatedAt *time.Time
}
