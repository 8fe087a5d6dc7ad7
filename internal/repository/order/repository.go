package order

import (
	"context"

	"storefront/internal/domain"
)

// Repository persists orders. Create is the only way an order comes into existence.
type Repository interface {
	Create(ctx context.Context, draft domain.OrderDraft) (domain.CheckoutResult, error)
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, int, error)
	UpdateStatus(ctx context.Context, id int64, next domain.OrderStatus, correlationID string) (*domain.Order, error)
}
