package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shopsync/internal/domain"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRepo{pool: pool, logger: logger.Named("product_repo")}
}

const selectColumns = `id, title, price::text, COALESCE(description, ''), COALESCE(category, ''), COALESCE(image, ''), rating_rate::text, rating_count`

// productRow holds numeric columns as text so prices keep their exact value.
type productRow struct {
	product     domain.Product
	price       string
	ratingRate  *string
	ratingCount *int32
}

func (r *productRow) targets() []any {
	p := &r.product
	return []any{&p.ID, &p.Title, &r.price, &p.Description, &p.Category, &p.Image, &r.ratingRate, &r.ratingCount}
}

func (r *productRow) build() (domain.Product, error) {
	p := r.product
	price, err := decimal.NewFromString(r.price)
	if err != nil {
		return p, fmt.Errorf("product %s: price %q: %w", p.ID, r.price, err)
	}
	p.Price = price
	if r.ratingRate != nil {
		rate, err := decimal.NewFromString(*r.ratingRate)
		if err != nil {
			return p, fmt.Errorf("product %s: rating %q: %w", p.ID, *r.ratingRate, err)
		}
		p.Rating.Rate = &rate
	}
	if r.ratingCount != nil {
		count := int(*r.ratingCount)
		p.Rating.Count = &count
	}
	return p, nil
}

func (r *postgresRepo) ListAll(ctx context.Context) ([]domain.Product, error) {
	q := `SELECT ` + selectColumns + ` FROM products ORDER BY seq`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		r.logger.Error("list products", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		var row productRow
		if err := rows.Scan(row.targets()...); err != nil {
			return nil, err
		}
		p, err := row.build()
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("list products rows", zap.Error(err))
		return nil, err
	}
	r.logger.Debug("listed products", zap.Int("count", len(result)))
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	q := `SELECT ` + selectColumns + ` FROM products WHERE id = $1`
	var row productRow
	if err := r.pool.QueryRow(ctx, q, id).Scan(row.targets()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("get product", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	p, err := row.build()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert inserts product or overwrites the row with the same id.
func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (id, title, price, description, category, image, rating_rate, rating_count)
VALUES ($1, $2, $3::numeric, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7::numeric, $8)
ON CONFLICT (id) DO UPDATE SET
    title = EXCLUDED.title,
    price = EXCLUDED.price,
    description = EXCLUDED.description,
    category = EXCLUDED.category,
    image = EXCLUDED.image,
    rating_rate = EXCLUDED.rating_rate,
    rating_count = EXCLUDED.rating_count,
    updated_at = now()
`
	if product.ID == "" {
		return nil, fmt.Errorf("product repo: upsert %q: id is required", product.Title)
	}

	var rate *string
	if product.Rating.Rate != nil {
		s := product.Rating.Rate.String()
		rate = &s
	}
	var count *int32
	if product.Rating.Count != nil {
		c := int32(*product.Rating.Count)
		count = &c
	}

	_, err := r.pool.Exec(ctx, q,
		product.ID,
		product.Title,
		product.Price.String(),
		product.Description,
		product.Category,
		product.Image,
		rate,
		count,
	)
	if err != nil {
		r.logger.Error("upsert product", zap.String("id", product.ID), zap.Error(err))
		return nil, err
	}
	r.logger.Debug("upserted product", zap.String("id", product.ID))
	saved := product
	return &saved, nil
}
