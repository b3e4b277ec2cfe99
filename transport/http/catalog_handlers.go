package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/pricewatch/core"
	"github.com/layer-3/pricewatch/service"
)

// CatalogHandlers serve products, watch lists and alerts
type CatalogHandlers struct {
	catalog *service.CatalogService
}

// NewCatalogHandlers creates new catalogue handlers
func NewCatalogHandlers(catalog *service.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// ListProducts handles GET /products
func (h *CatalogHandlers) ListProducts(c *gin.Context) {
	q := core.ProductQuery{
		Category:    c.Query("category"),
		Marketplace: core.Marketplace(c.Query("marketplace")),
		Search:      c.Query("search"),
	}
	var err error
	if v := c.Query("page"); v != "" {
		if q.Page, err = strconv.Atoi(v); err != nil || q.Page < 1 {
			invalidRequest(c, errors.New("page must be a positive integer"))
			return
		}
	}
	if v := c.Query("limit"); v != "" {
		if q.Limit, err = strconv.Atoi(v); err != nil || q.Limit < 1 || q.Limit > 100 {
			invalidRequest(c, errors.New("limit must be between 1 and 100"))
			return
		}
	}

	c.JSON(http.StatusOK, h.catalog.ListProducts(c.Request.Context(), q))
}

// Search handles GET /products/search
func (h *CatalogHandlers) Search(c *gin.Context) {
	q := c.Query("q")
	if n := len([]rune(q)); n < 2 || n > 200 {
		invalidRequest(c, errors.New("q must be between 2 and 200 characters"))
		return
	}
	c.JSON(http.StatusOK, h.catalog.Search(c.Request.Context(), q))
}

// Scrape handles POST /products/scrape
func (h *CatalogHandlers) Scrape(c *gin.Context) {
	var req core.ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		invalidRequest(c, errors.New("url is required"))
		return
	}
	if req.Marketplace == "" {
		req.Marketplace = core.MarketplaceOf(req.URL)
	}

	product, err := h.catalog.Scrape(c.Request.Context(), req)
	if err != nil {
		catalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// GetProduct handles GET /products/:id
func (h *CatalogHandlers) GetProduct(c *gin.Context) {
	product, err := h.catalog.Product(c.Request.Context(), c.Param("id"))
	if err != nil {
		catalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// Track handles POST /products/track
func (h *CatalogHandlers) Track(c *gin.Context) {
	var req core.TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == "" {
		invalidRequest(c, errors.New("product_id is required"))
		return
	}

	tracked, err := h.catalog.Track(c.Request.Context(), accountID(c), req)
	if err != nil {
		catalogError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tracked)
}

// Tracked handles GET /products/tracked
func (h *CatalogHandlers) Tracked(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Tracked(c.Request.Context(), accountID(c)))
}

// Untrack handles DELETE /products/tracked/:id
func (h *CatalogHandlers) Untrack(c *gin.Context) {
	if err := h.catalog.Untrack(c.Request.Context(), accountID(c), c.Param("id")); err != nil {
		catalogError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Alerts handles GET /alerts
func (h *CatalogHandlers) Alerts(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Alerts(c.Request.Context(), accountID(c)))
}

// CreateAlert handles POST /alerts
func (h *CatalogHandlers) CreateAlert(c *gin.Context) {
	var req core.NewAlert
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == "" || req.AlertType == "" {
		invalidRequest(c, errors.New("product_id and alert_type are required"))
		return
	}
	if req.NotificationChannel == "" {
		req.NotificationChannel = core.NotifyEmail
	}

	alert, err := h.catalog.CreateAlert(c.Request.Context(), accountID(c), req)
	if err != nil {
		catalogError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

// UpdateAlert handles PUT /alerts/:id
func (h *CatalogHandlers) UpdateAlert(c *gin.Context) {
	var req core.AlertUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	alert, err := h.catalog.UpdateAlert(c.Request.Context(), accountID(c), c.Param("id"), req)
	if err != nil {
		catalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

// TestAlert handles POST /alerts/:id/test
func (h *CatalogHandlers) TestAlert(c *gin.Context) {
	result, err := h.catalog.TestAlert(c.Request.Context(), accountID(c), c.Param("id"))
	if err != nil {
		catalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeleteAlert handles DELETE /alerts/:id
func (h *CatalogHandlers) DeleteAlert(c *gin.Context) {
	if err := h.catalog.DeleteAlert(c.Request.Context(), accountID(c), c.Param("id")); err != nil {
		catalogError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func catalogError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		detail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrAlreadyTracked),
		errors.Is(err, core.ErrUnsupportedMarketplace),
		errors.Is(err, core.ErrScrapeFailed):
		detail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrTrackingLimit):
		detail(c, http.StatusForbidden, err.Error())
	default:
		detail(c, http.StatusInternalServerError, "Internal error")
	}
}
