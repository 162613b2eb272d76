package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shopsync/internal/domain"
)

// Source lists every product the catalog starts with.
type Source interface {
	ListAll(ctx context.Context) ([]domain.Product, error)
}

// FileSource reads a JSON array of products in the fakestore format.
type FileSource struct {
	Path string
}

func (f FileSource) ListAll(ctx context.Context) ([]domain.Product, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer file.Close()
	return Decode(file)
}

// flexID accepts ids written as JSON strings or numbers.
type flexID string

func (id *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = flexID(n.String())
	return nil
}

type fileRating struct {
	Rate  *decimal.Decimal `json:"rate"`
	Count *int             `json:"count"`
}

type fileProduct struct {
	ID          flexID          `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Rating      *fileRating     `json:"rating"`
}

// Decode parses a JSON array of products.
func Decode(r io.Reader) ([]domain.Product, error) {
	var raw []fileProduct
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	out := make([]domain.Product, 0, len(raw))
	for _, fp := range raw {
		p := domain.Product{
			ID:          string(fp.ID),
			Title:       fp.Title,
			Price:       fp.Price,
			Description: fp.Description,
			Category:    fp.Category,
			Image:       fp.Image,
		}
		if fp.Rating != nil {
			p.Rating = domain.Rating{Rate: fp.Rating.Rate, Count: fp.Rating.Count}
		}
		out = append(out, p)
	}
	return out, nil
}

// Load reads src and builds a Store from it.
func Load(ctx context.Context, src Source, publisher Publisher, logger *zap.Logger) (*Store, error) {
	products, err := src.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	store, err := New(products, publisher, logger)
	if err != nil {
		return nil, err
	}
	store.logger.Info("catalog loaded", zap.Int("products", store.Len()))
	return store, nil
}
