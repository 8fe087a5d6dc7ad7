package catalog

import (
	"context"
	"strings"

	"storefront/internal/domain"
	categoryrepo "storefront/internal/repository/category"
	productrepo "storefront/internal/repository/product"

	"github.com/shopspring/decimal"
)

const (
	DefaultPerPage = 12
	MaxPerPage     = 100
	// MaxPage bounds the offset so it cannot overflow.
	MaxPage = 100000

	// PlaceholderImage is served for products without an image.
	PlaceholderImage = "https://via.placeholder.com/300"
)

// ListQuery is a catalog page request.
type ListQuery struct {
	Category string
	OnSale   bool
	MaxPrice *decimal.Decimal
	Sort     string
	Page     int
	PerPage  int
}

// Listing is a product with its derived display fields.
type Listing struct {
	domain.Product
	OnSale          bool
	DiscountPercent int
	ImageURL        string
}

type Page struct {
	Products   []Listing
	Total      int
	Page       int
	PerPage    int
	TotalPages int
}

type Service struct {
	products   productrepo.Repository
	categories categoryrepo.Repository
	fileHost   string
}

func New(products productrepo.Repository, categories categoryrepo.Repository, fileHost string) *Service {
	return &Service{
		products:   products,
		categories: categories,
		fileHost:   strings.TrimRight(fileHost, "/"),
	}
}

func (s *Service) List(ctx context.Context, q ListQuery) (*Page, error) {
	if q.MaxPrice != nil && q.MaxPrice.IsNegative() {
		return nil, domain.Invalid("maxPrice", "must not be negative")
	}
	sort := q.Sort
	switch sort {
	case "":
		sort = productrepo.SortDefault
	case productrepo.SortDefault, productrepo.SortPriceLow, productrepo.SortPriceHigh, productrepo.SortName:
	default:
		return nil, domain.Invalid("sort", "must be one of default, price-low, price-high, name")
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	products, total, err := s.products.List(ctx, productrepo.ListFilter{
		Category: q.Category,
		OnSale:   q.OnSale,
		MaxPrice: q.MaxPrice,
		Sort:     sort,
		Limit:    perPage,
		Offset:   (page - 1) * perPage,
	})
	if err != nil {
		return nil, domain.Persistence("list products", err)
	}

	out := &Page{
		Products:   make([]Listing, 0, len(products)),
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: (total + perPage - 1) / perPage,
	}
	for _, p := range products {
		out.Products = append(out.Products, s.listing(p))
	}
	return out, nil
}

// ListByCategory is List restricted to an existing category.
func (s *Service) ListByCategory(ctx context.Context, key string, q ListQuery) (*Page, error) {
	if _, err := s.categories.GetByKey(ctx, key); err != nil {
		return nil, domain.Persistence("get category", err)
	}
	q.Category = key
	return s.List(ctx, q)
}

func (s *Service) Get(ctx context.Context, id int64) (*Listing, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, domain.Persistence("get product", err)
	}
	l := s.listing(*p)
	return &l, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	cats, err := s.categories.ListAll(ctx)
	if err != nil {
		return nil, domain.Persistence("list categories", err)
	}
	return cats, nil
}

func (s *Service) listing(p domain.Product) Listing {
	return Listing{
		Product:         p,
		OnSale:          p.OnSale(),
		DiscountPercent: p.DiscountPercent(),
		ImageURL:        ResolveImageURL(s.fileHost, p.Image),
	}
}

// ResolveImageURL turns a stored image path into a URL served from host.
func ResolveImageURL(host, image string) string {
	image = strings.TrimSpace(image)
	if image == "" {
		return PlaceholderImage
	}
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return image
	}
	path := strings.TrimLeft(strings.ReplaceAll(image, `\`, "/"), "/")
	if strings.Contains(path, "uploads") {
		return host + "/" + path
	}
	return host + "/uploads/" + path
}
