package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"storefront/internal/domain"
	catalogsvc "storefront/internal/service/catalog"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type productResponse struct {
	ID              int64     `json:"id"`
	SKU             string    `json:"sku"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Price           string    `json:"price"`
	OldPrice        *string   `json:"oldPrice"`
	OnSale          bool      `json:"onSale"`
	DiscountPercent int       `json:"discountPercent"`
	Image           string    `json:"image"`
	Category        string    `json:"category,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

type productPageResponse struct {
	Products   []productResponse `json:"products"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PerPage    int               `json:"perPage"`
	TotalPages int               `json:"totalPages"`
}

type categoryResponse struct {
	ID   int64  `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

func toProductResponse(l catalogsvc.Listing) productResponse {
	resp := productResponse{
		ID:              l.ID,
		SKU:             l.SKU,
		Name:            l.Name,
		Description:     l.Description,
		Price:           l.Price.StringFixed(2),
		OnSale:          l.OnSale,
		DiscountPercent: l.DiscountPercent,
		Image:           l.ImageURL,
		Category:        l.Category,
		CreatedAt:       l.CreatedAt,
	}
	if l.OldPrice.Valid {
		s := l.OldPrice.Decimal.StringFixed(2)
		resp.OldPrice = &s
	}
	return resp
}

func toPageResponse(p *catalogsvc.Page) productPageResponse {
	resp := productPageResponse{
		Products:   make([]productResponse, 0, len(p.Products)),
		Total:      p.Total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: p.TotalPages,
	}
	for _, l := range p.Products {
		resp.Products = append(resp.Products, toProductResponse(l))
	}
	return resp
}

// parseListQuery reads category, onSale, maxPrice, sort, page and perPage.
func parseListQuery(c *gin.Context) (catalogsvc.ListQuery, bool) {
	q := catalogsvc.ListQuery{
		Category: c.Query("category"),
		Sort:     c.Query("sort"),
	}
	if raw := c.Query("onSale"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "onSale", "must be true or false")
			return q, false
		}
		q.OnSale = v
	}
	if raw := c.Query("maxPrice"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			badRequest(c, "maxPrice", "must be a number")
			return q, false
		}
		q.MaxPrice = &v
	}
	var ok bool
	if q.Page, ok = queryInt(c, "page"); !ok {
		return q, false
	}
	if q.PerPage, ok = queryInt(c, "perPage"); !ok {
		return q, false
	}
	return q, true
}

func (h *handlers) listProducts(c *gin.Context) {
	q, ok := parseListQuery(c)
	if !ok {
		return
	}
	page, err := h.catalog.List(c.Request.Context(), q)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toPageResponse(page))
}

func (h *handlers) listSaleProducts(c *gin.Context) {
	q, ok := parseListQuery(c)
	if !ok {
		return
	}
	q.OnSale = true
	page, err := h.catalog.List(c.Request.Context(), q)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toPageResponse(page))
}

func (h *handlers) listCategoryProducts(c *gin.Context) {
	q, ok := parseListQuery(c)
	if !ok {
		return
	}
	page, err := h.catalog.ListByCategory(c.Request.Context(), c.Param("key"), q)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toPageResponse(page))
}

func (h *handlers) getProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	l, err := h.catalog.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(*l))
}

func (h *handlers) listCategories(c *gin.Context) {
	cats, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	resp := make([]categoryResponse, 0, len(cats))
	for _, cat := range cats {
		resp = append(resp, toCategoryResponse(cat))
	}
	c.JSON(http.StatusOK, gin.H{"categories": resp})
}

func toCategoryResponse(c domain.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Key: c.Key, Name: c.Name, Slug: c.Slug}
}
