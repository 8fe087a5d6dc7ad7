package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CartLine is one product selection with its chosen size and color.
type CartLine struct {
	ProductID int64  `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

// Cart is the shopper's selection at checkout. It is built from the request and never stored.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

// CartFromParallel builds a Cart from the legacy parallel-array encoding.
func CartFromParallel(productIDs []int64, sizes, colors []string) (Cart, error) {
	if len(sizes) != len(productIDs) {
		return Cart{}, Invalid("size", fmt.Sprintf("expected %d entries, got %d", len(productIDs), len(sizes)))
	}
	if len(colors) != len(productIDs) {
		return Cart{}, Invalid("color", fmt.Sprintf("expected %d entries, got %d", len(productIDs), len(colors)))
	}
	lines := make([]CartLine, 0, len(productIDs))
	for i, id := range productIDs {
		lines = append(lines, CartLine{ProductID: id, Size: sizes[i], Color: colors[i]})
	}
	return Cart{Lines: lines}, nil
}

func (c Cart) Len() int {
	return len(c.Lines)
}

// ProductIDs returns the distinct product IDs in first-seen order.
func (c Cart) ProductIDs() []int64 {
	seen := make(map[int64]struct{}, len(c.Lines))
	ids := make([]int64, 0, len(c.Lines))
	for _, l := range c.Lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	return ids
}

// Fingerprint identifies a submission by user and ordered lines. The lines are
// hashed in their JSON form so free-text sizes and colors cannot collide.
func (c Cart) Fingerprint(userID int64) string {
	body, _ := json.Marshal(struct {
		UserID int64      `json:"userId"`
		Lines  []CartLine `json:"lines"`
	}{userID, c.Lines})
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
