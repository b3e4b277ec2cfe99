package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/layer-3/pricewatch/core"
	"github.com/layer-3/pricewatch/ports"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxSearchHits   = 50

	// FreeTierMaxTracked is how many products a free account may track
	FreeTierMaxTracked = 5
)

// CatalogService serves products, watch lists and alerts from memory
type CatalogService struct {
	clock     clockwork.Clock
	isPremium func(accountID int64) bool
	scraper   ports.Scraper

	mu       sync.RWMutex
	products map[string]core.Product
	tracked  map[string]core.TrackedProduct
	alerts   map[string]core.Alert
}

// CatalogOption configures a CatalogService
type CatalogOption func(*CatalogService)

// WithScraper lets the catalogue add products from marketplace URLs.
// Without one, only URLs already in the catalogue can be scraped.
func WithScraper(scraper ports.Scraper) CatalogOption {
	return func(s *CatalogService) { s.scraper = scraper }
}

// NewCatalogService creates a catalogue holding products
func NewCatalogService(clock clockwork.Clock, isPremium func(accountID int64) bool, products []core.Product, opts ...CatalogOption) *CatalogService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &CatalogService{
		clock:     clock,
		isPremium: isPremium,
		products:  make(map[string]core.Product, len(products)),
		tracked:   make(map[string]core.TrackedProduct),
		alerts:    make(map[string]core.Alert),
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SampleProducts returns a small fixed catalogue
func SampleProducts(clock clockwork.Clock) []core.Product {
	now := clock.Now()
	return []core.Product{
		{
			ID: "5b0c2f7e-1d8a-4f4e-9a53-0c6f2b1e7a01", Name: "Tecno Spark 20 128Go", Category: "phones",
			Marketplace: core.MarketplaceJumia, URL: "https://www.jumia.com.bj/tecno-spark-20",
			CurrentPrice: decimal.RequireFromString("89900"), Currency: "XOF", IsAvailable: true, CreatedAt: now,
		},
		{
			ID: "5b0c2f7e-1d8a-4f4e-9a53-0c6f2b1e7a02", Name: "Samsung Galaxy A15", Category: "phones",
			Marketplace: core.MarketplaceJumia, URL: "https://www.jumia.com.bj/samsung-galaxy-a15",
			CurrentPrice: decimal.RequireFromString("119500"), Currency: "XOF", IsAvailable: true, CreatedAt: now,
		},
		{
			ID: "5b0c2f7e-1d8a-4f4e-9a53-0c6f2b1e7a03", Name: "Kindle Paperwhite", Category: "electronics",
			Description: "6.8 inch e-reader with adjustable warm light",
			Marketplace: core.MarketplaceAmazon, URL: "https://www.amazon.com/dp/B08KTZ8249",
			CurrentPrice: decimal.RequireFromString("149.99"), Currency: "USD", IsAvailable: false, CreatedAt: now,
		},
		{
			ID: "5b0c2f7e-1d8a-4f4e-9a53-0c6f2b1e7a04", Name: "Riz parfumé 25kg", Category: "food",
			Marketplace: core.MarketplaceLocal, URL: "https://dantokpa.example/riz-25kg",
			CurrentPrice: decimal.RequireFromString("17500"), Currency: "XOF", IsAvailable: true, CreatedAt: now,
		},
	}
}

// ListProducts returns one page of products matching q, ordered by name
func (s *CatalogService) ListProducts(ctx context.Context, q core.ProductQuery) []core.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(q.Search)
	matched := make([]core.Product, 0, len(s.products))
	for _, p := range s.products {
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		if q.Marketplace != "" && p.Marketplace != q.Marketplace {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	start := (page - 1) * limit
	if start >= len(matched) {
		return []core.Product{}
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end]
}

// Search returns up to 50 products whose name or description contains q,
// ignoring case
func (s *CatalogService) Search(ctx context.Context, q string) []core.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q = strings.ToLower(q)
	out := []core.Product{}
	for _, p := range s.products {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if len(out) > maxSearchHits {
		out = out[:maxSearchHits]
	}
	return out
}

// Scrape returns the product behind url, scraping and adding it when the
// catalogue does not hold it yet
func (s *CatalogService) Scrape(ctx context.Context, req core.ScrapeRequest) (core.Product, error) {
	if p, ok := s.byURL(req.URL); ok {
		return p, nil
	}
	if req.Marketplace != core.MarketplaceJumia && req.Marketplace != core.MarketplaceAmazon {
		return core.Product{}, core.ErrUnsupportedMarketplace
	}
	if s.scraper == nil {
		return core.Product{}, core.ErrScrapeFailed
	}

	product, err := s.scraper.ScrapeProduct(ctx, req.Marketplace, req.URL)
	if err != nil {
		return core.Product{}, fmt.Errorf("%w: %v", core.ErrScrapeFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.products {
		if p.URL == req.URL {
			return p, nil
		}
	}
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	product.URL = req.URL
	product.Marketplace = req.Marketplace
	product.CreatedAt = s.clock.Now()
	s.products[product.ID] = product
	return product, nil
}

func (s *CatalogService) byURL(url string) (core.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.URL == url {
			return p, true
		}
	}
	return core.Product{}, false
}

// Product returns a product by id
func (s *CatalogService) Product(ctx context.Context, id string) (core.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return core.Product{}, core.ErrNotFound
	}
	return p, nil
}

// Track adds a product to the account's watch list. Free accounts are
// limited to FreeTierMaxTracked entries.
func (s *CatalogService) Track(ctx context.Context, accountID int64, req core.TrackRequest) (core.TrackedProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[req.ProductID]
	if !ok {
		return core.TrackedProduct{}, core.ErrNotFound
	}

	userID := strconv.FormatInt(accountID, 10)
	count := 0
	for _, t := range s.tracked {
		if t.UserID != userID {
			continue
		}
		if t.ProductID == req.ProductID {
			return core.TrackedProduct{}, core.ErrAlreadyTracked
		}
		count++
	}
	if count >= FreeTierMaxTracked && (s.isPremium == nil || !s.isPremium(accountID)) {
		return core.TrackedProduct{}, core.ErrTrackingLimit
	}

	tracked := core.TrackedProduct{
		ID:          uuid.New().String(),
		ProductID:   product.ID,
		UserID:      userID,
		TargetPrice: req.TargetPrice,
		CreatedAt:   s.clock.Now(),
		Product:     product,
	}
	s.tracked[tracked.ID] = tracked
	return tracked, nil
}

// Tracked returns the account's watch list, oldest first
func (s *CatalogService) Tracked(ctx context.Context, accountID int64) []core.TrackedProduct {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID := strconv.FormatInt(accountID, 10)
	out := []core.TrackedProduct{}
	for _, t := range s.tracked {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Untrack removes a watch list entry owned by the account
func (s *CatalogService) Untrack(ctx context.Context, accountID int64, trackedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tracked[trackedID]
	if !ok || t.UserID != strconv.FormatInt(accountID, 10) {
		return core.ErrNotFound
	}
	delete(s.tracked, trackedID)
	return nil
}

// Alerts returns the account's alerts, oldest first
func (s *CatalogService) Alerts(ctx context.Context, accountID int64) []core.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID := strconv.FormatInt(accountID, 10)
	out := []core.Alert{}
	for _, a := range s.alerts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// CreateAlert registers an alert on an existing product
func (s *CatalogService) CreateAlert(ctx context.Context, accountID int64, req core.NewAlert) (core.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[req.ProductID]; !ok {
		return core.Alert{}, core.ErrNotFound
	}

	now := s.clock.Now()
	alert := core.Alert{
		ID:                  uuid.New().String(),
		UserID:              strconv.FormatInt(accountID, 10),
		ProductID:           req.ProductID,
		AlertType:           req.AlertType,
		ThresholdValue:      req.ThresholdValue,
		IsActive:            true,
		NotificationChannel: req.NotificationChannel,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	s.alerts[alert.ID] = alert
	return alert, nil
}

// UpdateAlert applies the non-nil fields of update
func (s *CatalogService) UpdateAlert(ctx context.Context, accountID int64, alertID string, update core.AlertUpdate) (core.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[alertID]
	if !ok || alert.UserID != strconv.FormatInt(accountID, 10) {
		return core.Alert{}, core.ErrNotFound
	}

	if update.AlertType != nil {
		alert.AlertType = *update.AlertType
	}
	if update.ThresholdValue != nil {
		alert.ThresholdValue = update.ThresholdValue
	}
	if update.NotificationChannel != nil {
		alert.NotificationChannel = *update.NotificationChannel
	}
	if update.IsActive != nil {
		alert.IsActive = *update.IsActive
	}
	alert.UpdatedAt = s.clock.Now()

	s.alerts[alertID] = alert
	return alert, nil
}

// TestAlert reports the channel a test notification for the alert goes to.
// Nothing is delivered.
func (s *CatalogService) TestAlert(ctx context.Context, accountID int64, alertID string) (core.AlertTestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, ok := s.alerts[alertID]
	if !ok || alert.UserID != strconv.FormatInt(accountID, 10) {
		return core.AlertTestResult{}, core.ErrNotFound
	}
	return core.AlertTestResult{
		Message: fmt.Sprintf("Test notification sent via %s", alert.NotificationChannel),
		AlertID: alertID,
	}, nil
}

// DeleteAlert removes an alert owned by the account
func (s *CatalogService) DeleteAlert(ctx context.Context, accountID int64, alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[alertID]
	if !ok || alert.UserID != strconv.FormatInt(accountID, 10) {
		return core.ErrNotFound
	}
	delete(s.alerts, alertID)
	return nil
}
