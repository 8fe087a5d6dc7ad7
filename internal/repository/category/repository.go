package category

import (
	"context"

	"storefront/internal/domain"
)

type Repository interface {
	ListAll(ctx context.Context) ([]domain.Category, error)
	GetByKey(ctx context.Context, key string) (*domain.Category, error)
	Upsert(ctx context.Context, c domain.Category) (*domain.Category, error)
}
