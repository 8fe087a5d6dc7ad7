package events

import (
	"strconv"

	"storefront/internal/domain"
)

// Topics double as RabbitMQ queue names and Kafka topics.
const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
)

type OrderLine struct {
	ProductID int64  `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	UnitPrice string `json:"unitPrice"`
}

type OrderCreated struct {
	OrderID int64       `json:"orderId"`
	UserID  int64       `json:"userId"`
	Status  string      `json:"status"`
	Total   string      `json:"total"`
	Items   []OrderLine `json:"items"`
}

type OrderStatusChanged struct {
	OrderID int64  `json:"orderId"`
	UserID  int64  `json:"userId"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// NewOrderCreated builds the event emitted when an order is committed.
func NewOrderCreated(o domain.Order, correlationID string) EventEnvelope[OrderCreated] {
	payload := OrderCreated{
		OrderID: o.ID,
		UserID:  o.UserID,
		Status:  string(o.Status),
		Total:   o.Total.StringFixed(2),
		Items:   make([]OrderLine, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		payload.Items = append(payload.Items, OrderLine{
			ProductID: it.ProductID,
			Size:      it.Size,
			Color:     it.Color,
			UnitPrice: it.UnitPrice.StringFixed(2),
		})
	}
	return newEnvelope(TopicOrderCreated, strconv.FormatInt(o.ID, 10), correlationID, payload)
}

func NewOrderStatusChanged(o domain.Order, from domain.OrderStatus, correlationID string) EventEnvelope[OrderStatusChanged] {
	return newEnvelope(TopicOrderStatusChanged, strconv.FormatInt(o.ID, 10), correlationID, OrderStatusChanged{
		OrderID: o.ID,
		UserID:  o.UserID,
		From:    string(from),
		To:      string(o.Status),
	})
}
