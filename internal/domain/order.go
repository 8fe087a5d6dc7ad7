package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPaid      OrderStatus = "paid"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

var transitions = map[OrderStatus][]OrderStatus{
	StatusPending: {StatusPaid, StatusCancelled},
	StatusPaid:    {StatusShipped, StatusCancelled},
	StatusShipped: {StatusDelivered},
}

// ParseOrderStatus accepts a status name in any case.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	}
	return "", Invalid("status", fmt.Sprintf("unknown status %q", s))
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderItem is one persisted line of an order, priced at submission time.
type OrderItem struct {
	Position  int             `json:"position"`
	ProductID int64           `json:"productId"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"userId"`
	Items           []OrderItem     `json:"items"`
	Total           decimal.Decimal `json:"total"`
	Status          OrderStatus     `json:"status"`
	SubmissionToken string          `json:"submissionToken,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ProductIDs returns product IDs in line order, duplicates included.
func (o Order) ProductIDs() []int64 {
	out := make([]int64, len(o.Items))
	for i, it := range o.Items {
		out[i] = it.ProductID
	}
	return out
}

func (o Order) Sizes() []string {
	out := make([]string, len(o.Items))
	for i, it := range o.Items {
		out[i] = it.Size
	}
	return out
}

func (o Order) Colors() []string {
	out := make([]string, len(o.Items))
	for i, it := range o.Items {
		out[i] = it.Color
	}
	return out
}

// OrderDraft is a validated submission waiting for the atomic checkout.
type OrderDraft struct {
	UserID          int64
	Cart            Cart
	ExpectedTotal   *decimal.Decimal
	SubmissionToken string
	CorrelationID   string
}

func (d OrderDraft) Fingerprint() string {
	return d.Cart.Fingerprint(d.UserID)
}

// CheckoutResult is the outcome of an order submission.
type CheckoutResult struct {
	Order    *Order
	Replayed bool
}

// OrderFilter narrows order listings. Zero values mean no filter.
type OrderFilter struct {
	Status OrderStatus
	UserID int64
	Limit  int
	Offset int
}
