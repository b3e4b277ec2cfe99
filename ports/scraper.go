package ports

import (
	"context"

	"github.com/layer-3/pricewatch/core"
)

// Scraper fetches a product page and describes the product it shows
type Scraper interface {
	ScrapeProduct(ctx context.Context, marketplace core.Marketplace, url string) (core.Product, error)
}
