package domain

import "github.com/shopspring/decimal"

// Rating is the aggregated review score of a product. Either field may be
// absent when the catalog source did not provide it.
type Rating struct {
	Rate  *decimal.Decimal `json:"rate"`
	Count *int             `json:"count"`
}

type Product struct {
	ID          string          `json:"id" validate:"required"`
	Title       string          `json:"title" validate:"required"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Rating      Rating          `json:"rating"`
}
