package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Marketplace a product is scraped from
type Marketplace string

const (
	MarketplaceJumia  Marketplace = "jumia"
	MarketplaceAmazon Marketplace = "amazon"
	MarketplaceLocal  Marketplace = "local_market"
)

// AlertType selects the condition an alert fires on
type AlertType string

const (
	AlertTargetPrice    AlertType = "target_price"
	AlertPercentageDrop AlertType = "percentage_drop"
	AlertAvailability   AlertType = "availability"
)

// Product is a storefront listing
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Category      string          `json:"category,omitempty"`
	ImageURL      string          `json:"image_url,omitempty"`
	Marketplace   Marketplace     `json:"marketplace"`
	URL           string          `json:"url"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	Currency      string          `json:"currency"`
	IsAvailable   bool            `json:"is_available"`
	LastScrapedAt *time.Time      `json:"last_scraped_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ProductQuery filters GET /products. Zero values are omitted.
type ProductQuery struct {
	Page        int
	Limit       int
	Category    string
	Marketplace Marketplace
	Search      string
}

// TrackedProduct is a product on the user's watch list
type TrackedProduct struct {
	ID          string           `json:"id"`
	ProductID   string           `json:"product_id"`
	UserID      string           `json:"user_id"`
	TargetPrice *decimal.Decimal `json:"target_price,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	Product     Product          `json:"product"`
}

// TrackRequest is the body of POST /products/track
type TrackRequest struct {
	ProductID   string           `json:"product_id"`
	TargetPrice *decimal.Decimal `json:"target_price,omitempty"`
}

// Alert notifies the user when a product matches its condition
type Alert struct {
	ID                  string              `json:"id"`
	UserID              string              `json:"user_id"`
	ProductID           string              `json:"product_id"`
	AlertType           AlertType           `json:"alert_type"`
	ThresholdValue      *decimal.Decimal    `json:"threshold_value,omitempty"`
	IsActive            bool                `json:"is_active"`
	NotificationChannel NotificationChannel `json:"notification_channel"`
	LastTriggeredAt     *time.Time          `json:"last_triggered_at,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// NewAlert is the body of POST /alerts
type NewAlert struct {
	ProductID           string              `json:"product_id"`
	AlertType           AlertType           `json:"alert_type"`
	ThresholdValue      *decimal.Decimal    `json:"threshold_value,omitempty"`
	NotificationChannel NotificationChannel `json:"notification_channel"`
}

// AlertUpdate is the body of PUT /alerts/{id}. Nil fields are left unchanged.
type AlertUpdate struct {
	AlertType           *AlertType           `json:"alert_type,omitempty"`
	ThresholdValue      *decimal.Decimal     `json:"threshold_value,omitempty"`
	NotificationChannel *NotificationChannel `json:"notification_channel,omitempty"`
	IsActive            *bool                `json:"is_active,omitempty"`
}

// ScrapeRequest is the body of POST /products/scrape
type ScrapeRequest struct {
	URL         string      `json:"url"`
	Marketplace Marketplace `json:"marketplace"`
}

// MarketplaceOf guesses the marketplace of a product URL. Anything that is
// not an Amazon link is treated as Jumia.
func MarketplaceOf(productURL string) Marketplace {
	if strings.Contains(productURL, "amazon.") {
		return MarketplaceAmazon
	}
	return MarketplaceJumia
}

// AlertTestResult is the answer of POST /alerts/{id}/test
type AlertTestResult struct {
	Message string `json:"message"`
	AlertID string `json:"alert_id"`
}
