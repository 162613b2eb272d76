package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type productSeed struct {
	ID          string
	Title       string
	Price       string
	Description string
	Category    string
	Image       string
	Rate        string
	Count       int
}

// products is the demo catalog written by Apply.
var products = []productSeed{
	{
		ID:          "1",
		Title:       "Fjallraven - Foldsack No. 1 Backpack, Fits 15 Laptops",
		Price:       "109.95",
		Description: "Your perfect pack for everyday use and walks in the forest.",
		Category:    "men's clothing",
		Image:       "https://fakestoreapi.com/img/81fPKd-2AYL._AC_SL1500_.jpg",
		Rate:        "3.9",
		Count:       120,
	},
	{
		ID:          "2",
		Title:       "Mens Casual Premium Slim Fit T-Shirts",
		Price:       "22.30",
		Description: "Slim-fitting style, contrast raglan long sleeve.",
		Category:    "men's clothing",
		Image:       "https://fakestoreapi.com/img/71-3HjGNDUL._AC_SY879._SX._UX._SY._UY_.jpg",
		Rate:        "4.1",
		Count:       259,
	},
	{
		ID:          "5",
		Title:       "John Hardy Women's Legends Naga Gold & Silver Dragon Station Chain Bracelet",
		Price:       "695.00",
		Description: "From our Legends Collection, the Naga was inspired by the mythical water dragon.",
		Category:    "jewelery",
		Image:       "https://fakestoreapi.com/img/71pWzhdJNwL._AC_UL640_QL65_ML3_.jpg",
		Rate:        "4.6",
		Count:       400,
	},
	{
		ID:          "9",
		Title:       "WD 2TB Elements Portable External Hard Drive - USB 3.0",
		Price:       "64.00",
		Description: "USB 3.0 and USB 2.0 compatibility, fast data transfers.",
		Category:    "electronics",
		Image:       "https://fakestoreapi.com/img/61IBBVJvSDL._AC_SY879_.jpg",
		Rate:        "3.3",
		Count:       203,
	},
}

// Apply inserts the demo catalog for manual testing. It is idempotent via ON CONFLICT.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	for _, p := range products {
		if err := upsertProduct(ctx, pool, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
	}
	return nil
}

func upsertProduct(ctx context.Context, pool *pgxpool.Pool, p productSeed) error {
	const q = `
INSERT INTO products (id, title, price, description, category, image, rating_rate, rating_count)
VALUES ($1, $2, $3::numeric, $4, $5, $6, $7::numeric, $8)
ON CONFLICT (id) DO UPDATE
SET title = EXCLUDED.title,
    price = EXCLUDED.price,
    description = EXCLUDED.description,
    category = EXCLUDED.category,
    image = EXCLUDED.image,
    rating_rate = EXCLUDED.rating_rate,
    rating_count = EXCLUDED.rating_count,
    updated_at = now()
`
	_, err := pool.Exec(ctx, q, p.ID, p.Title, p.Price, p.Description, p.Category, p.Image, p.Rate, p.Count)
	return err
}
