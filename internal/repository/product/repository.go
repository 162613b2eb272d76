package product

import (
	"context"

	"shopsync/internal/domain"
)

// Repository is the Postgres catalog source. ListAll returns products in
// insertion order.
type Repository interface {
	ListAll(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}
