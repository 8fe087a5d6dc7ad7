package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// totalTolerance absorbs client-side float rounding of the asserted total.
var totalTolerance = decimal.RequireFromString("0.005")

// PriceOrder resolves every cart line against catalog and returns the priced items and total.
// expected, when set, must match the recomputed total to the cent.
func PriceOrder(cart Cart, catalog map[int64]Product, expected *decimal.Decimal) ([]OrderItem, decimal.Decimal, error) {
	items := make([]OrderItem, 0, cart.Len())
	total := decimal.Zero
	for i, line := range cart.Lines {
		p, ok := catalog[line.ProductID]
		if !ok {
			return nil, decimal.Zero, Unresolved(fmt.Sprintf("lines[%d].productId", i), line.ProductID)
		}
		items = append(items, OrderItem{
			Position:  i,
			ProductID: line.ProductID,
			Size:      line.Size,
			Color:     line.Color,
			UnitPrice: p.Price,
		})
		total = total.Add(p.Price)
	}
	total = total.Round(2)
	if expected != nil && expected.Sub(total).Abs().GreaterThan(totalTolerance) {
		return nil, decimal.Zero, Invalid("total", fmt.Sprintf("expected %s, catalog prices sum to %s", expected.StringFixed(2), total.StringFixed(2)))
	}
	return items, total, nil
}
