// Package catalog holds the product list served to clients and used to price
// carts.
package catalog

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shopsync/internal/domain"
	"shopsync/internal/events"
)

// Publisher receives catalog change events.
type Publisher interface {
	Publish(events.Event)
}

// Store is an in-memory, concurrency-safe product catalog.
type Store struct {
	mu       sync.RWMutex
	products []domain.Product
	index    map[string]int

	publisher Publisher
	validate  *validator.Validate
	logger    *zap.Logger
}

// New validates products and builds a store. Duplicate ids are rejected.
func New(products []domain.Product, publisher Publisher, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		products:  make([]domain.Product, 0, len(products)),
		index:     make(map[string]int, len(products)),
		publisher: publisher,
		validate:  validator.New(),
		logger:    logger,
	}
	for i, p := range products {
		if err := s.validate.Struct(p); err != nil {
			return nil, fmt.Errorf("catalog: product at %d: %w", i, err)
		}
		if p.Price.IsNegative() {
			return nil, fmt.Errorf("catalog: product %s: negative price", p.ID)
		}
		if _, dup := s.index[p.ID]; dup {
			return nil, fmt.Errorf("catalog: product id %s: %w", p.ID, domain.ErrAlreadyExists)
		}
		s.index[p.ID] = len(s.products)
		s.products = append(s.products, p)
	}
	return s, nil
}

type ListQuery struct {
	Category *string
	Limit    *int
	Offset   *int
}

type Page struct {
	Items   []domain.Product
	Total   int
	HasMore bool
}

// List filters by exact category and pages the result. Total counts the
// filtered set before paging. Without a limit every item from offset on is
// returned and HasMore is false.
func (s *Store) List(q ListQuery) Page {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := s.products
	if q.Category != nil && *q.Category != "" {
		filtered = make([]domain.Product, 0)
		for _, p := range s.products {
			if p.Category == *q.Category {
				filtered = append(filtered, p)
			}
		}
	}
	total := len(filtered)

	offset := 0
	if q.Offset != nil && *q.Offset > 0 {
		offset = *q.Offset
	}
	if offset > total {
		offset = total
	}

	end := total
	hasMore := false
	if q.Limit != nil {
		limit := *q.Limit
		if limit < 0 {
			limit = 0
		}
		if offset+limit < end {
			end = offset + limit
		}
		hasMore = offset+limit < total
	}

	items := make([]domain.Product, end-offset)
	copy(items, filtered[offset:end])
	return Page{Items: items, Total: total, HasMore: hasMore}
}

func (s *Store) Get(id string) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return domain.Product{}, false
	}
	return s.products[i], true
}

// Categories lists distinct non-empty categories in first-seen order.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, p := range s.products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

type NewProduct struct {
	Title       string `validate:"required"`
	Price       decimal.Decimal
	Description string
	Category    string
	Image       string
	Rate        *decimal.Decimal
	Count       *int `validate:"omitempty,min=0"`
}

// Add appends a product with the next numeric id and publishes ProductAdded.
func (s *Store) Add(in NewProduct) (domain.Product, error) {
	if err := s.validate.Struct(in); err != nil {
		return domain.Product{}, domain.Wrap(domain.ErrInvalidProduct, err)
	}
	if in.Price.IsNegative() {
		return domain.Product{}, domain.ErrInvalidProduct
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := domain.Product{
		ID:          strconv.FormatInt(s.nextID(), 10),
		Title:       in.Title,
		Price:       in.Price,
		Description: in.Description,
		Category:    in.Category,
		Image:       in.Image,
		Rating:      domain.Rating{Rate: in.Rate, Count: in.Count},
	}
	s.index[p.ID] = len(s.products)
	s.products = append(s.products, p)
	s.logger.Info("product added", zap.String("product_id", p.ID), zap.String("title", p.Title))

	if s.publisher != nil {
		s.publisher.Publish(events.ProductAdded{Product: p})
	}
	return p, nil
}

// nextID is one past the largest numeric id. Non-numeric ids are ignored.
func (s *Store) nextID() int64 {
	var max int64
	for _, p := range s.products {
		n, err := strconv.ParseInt(p.ID, 10, 64)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1
}

// ProductPatch changes only the fields that are set.
type ProductPatch struct {
	Title       *string
	Price       *decimal.Decimal
	Description *string
	Category    *string
	Image       *string
	Rate        *decimal.Decimal
	Count       *int
}

// Update applies patch to product id and publishes ProductUpdated.
func (s *Store) Update(id string, patch ProductPatch) (domain.Product, error) {
	if patch.Title != nil && *patch.Title == "" {
		return domain.Product{}, domain.ErrInvalidProduct
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		return domain.Product{}, domain.ErrInvalidProduct
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	p := s.products[i]
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Image != nil {
		p.Image = *patch.Image
	}
	if patch.Rate != nil {
		p.Rating.Rate = patch.Rate
	}
	if patch.Count != nil {
		p.Rating.Count = patch.Count
	}
	s.products[i] = p
	s.logger.Info("product updated", zap.String("product_id", p.ID))

	if s.publisher != nil {
		s.publisher.Publish(events.ProductUpdated{Product: p})
	}
	return p, nil
}

// Remove deletes product id. Cart lines that reference it are left in place
// and price at zero.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.products = append(s.products[:i], s.products[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.products); j++ {
		s.index[s.products[j].ID] = j
	}
	s.logger.Info("product removed", zap.String("product_id", id))
	return true
}
