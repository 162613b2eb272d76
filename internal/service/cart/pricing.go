package cart

import (
	"github.com/shopspring/decimal"

	"shopsync/internal/domain"
)

// ProductLookup resolves a product id against the current catalog.
type ProductLookup interface {
	Get(id string) (domain.Product, bool)
}

// Price builds the priced view of lines. Lines whose product no longer exists
// keep their place, carry a nil Product and add nothing to the total.
func Price(lines []domain.CartLine, catalog ProductLookup) domain.Cart {
	cart := domain.Cart{
		Items: make([]domain.CartItem, 0, len(lines)),
		Total: decimal.Zero,
	}
	for _, line := range lines {
		item := domain.CartItem{ProductID: line.ProductID, Quantity: line.Quantity}
		if p, ok := catalog.Get(line.ProductID); ok {
			product := p
			item.Product = &product
			cart.Total = cart.Total.Add(p.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		cart.Items = append(cart.Items, item)
	}
	return cart
}
