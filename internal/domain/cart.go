package domain

import "github.com/shopspring/decimal"

// CartLine is a stored (productId, quantity) pair. Quantity is always positive;
// a line that would drop to zero is removed instead.
type CartLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CartItem is a priced line. Product is nil when the referenced product no
// longer exists in the catalog.
type CartItem struct {
	ProductID string   `json:"productId"`
	Quantity  int      `json:"quantity"`
	Product   *Product `json:"product"`
}

// Cart is the priced view of a user's lines. Total is derived from current
// catalog prices and is never stored.
type Cart struct {
	Items []CartItem      `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// Lines returns the stored form of the priced items.
func (c Cart) Lines() []CartLine {
	out := make([]CartLine, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, CartLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}
