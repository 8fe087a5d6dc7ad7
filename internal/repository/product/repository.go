package product

import (
	"context"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
)

// Sort orders understood by List.
const (
	SortDefault   = "default"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortName      = "name"
)

// ListFilter narrows a catalog listing. Zero values mean no filter.
type ListFilter struct {
	Category string
	OnSale   bool
	MaxPrice *decimal.Decimal
	Sort     string
	Limit    int
	Offset   int
}

type Repository interface {
	List(ctx context.Context, f ListFilter) ([]domain.Product, int, error)
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
}

// Writer is used by the seed and import commands.
type Writer interface {
	Upsert(ctx context.Context, p domain.Product) (*domain.Product, error)
}
