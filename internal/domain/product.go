package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64               `json:"id"`
	SKU         string              `json:"sku"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Price       decimal.Decimal     `json:"price"`
	OldPrice    decimal.NullDecimal `json:"oldPrice"`
	Image       string              `json:"image,omitempty"`
	Category    string              `json:"category,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// OnSale reports whether the product carries an old price above the current one.
func (p Product) OnSale() bool {
	return p.OldPrice.Valid && p.OldPrice.Decimal.GreaterThan(p.Price)
}

// DiscountPercent returns the rounded percentage saved against the old price, or 0.
func (p Product) DiscountPercent() int {
	if !p.OnSale() || p.OldPrice.Decimal.IsZero() {
		return 0
	}
	pct := p.OldPrice.Decimal.Sub(p.Price).
		Div(p.OldPrice.Decimal).
		Mul(decimal.NewFromInt(100)).
		Round(0)
	return int(pct.IntPart())
}

// ValidatePrices checks the catalog price invariants.
func (p Product) ValidatePrices() error {
	if p.Price.IsNegative() {
		return Invalid("price", "must not be negative")
	}
	if p.OldPrice.Valid && !p.OldPrice.Decimal.GreaterThan(p.Price) {
		return Invalid("oldPrice", "must be greater than price")
	}
	return nil
}
