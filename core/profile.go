package core

import "time"

// NotificationChannel is the preferred channel for price alerts
type NotificationChannel string

const (
	NotifyEmail    NotificationChannel = "email"
	NotifyTelegram NotificationChannel = "telegram"
	NotifyWhatsApp NotificationChannel = "whatsapp"
	NotifySMS      NotificationChannel = "sms"
)

// Profile is the current user as returned by GET /auth/me
type Profile struct {
	ID                           int64               `json:"id"`
	Email                        string              `json:"email"`
	FullName                     string              `json:"full_name,omitempty"`
	Phone                        string              `json:"phone,omitempty"`
	IsActive                     bool                `json:"is_active"`
	IsPremium                    bool                `json:"is_premium"`
	IsVerified                   bool                `json:"is_verified"`
	PremiumExpiresAt             *time.Time          `json:"premium_expires_at,omitempty"`
	PreferredNotificationChannel NotificationChannel `json:"preferred_notification_channel"`
	TelegramUserID               string              `json:"telegram_user_id,omitempty"`
	CreatedAt                    time.Time           `json:"created_at"`
	UpdatedAt                    *time.Time          `json:"updated_at,omitempty"`
}

// Registration is the body of POST /auth/register
type Registration struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// ProfileUpdate is the body of PUT /auth/me. Nil fields are left unchanged.
type ProfileUpdate struct {
	FullName              *string              `json:"full_name,omitempty"`
	Phone                 *string              `json:"phone,omitempty"`
	TelegramID            *string              `json:"telegram_id,omitempty"`
	WhatsAppNumber        *string              `json:"whatsapp_number,omitempty"`
	PreferredNotification *NotificationChannel `json:"preferred_notification,omitempty"`
}

// ProfileFromAccount builds the public view of an account
func ProfileFromAccount(a *Account) Profile {
	return Profile{
		ID:                           a.ID,
		Email:                        a.Email,
		FullName:                     a.FullName,
		Phone:                        a.Phone,
		IsActive:                     a.Active,
		IsPremium:                    a.Premium,
		IsVerified:                   a.Verified,
		PreferredNotificationChannel: a.PreferredNotification,
		TelegramUserID:               a.TelegramID,
		CreatedAt:                    a.CreatedAt,
		UpdatedAt:                    a.UpdatedAt,
	}
}
