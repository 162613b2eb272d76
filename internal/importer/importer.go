package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shopsync/internal/catalog"
	"shopsync/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// Importer validates product lists and writes them through a ProductWriter.
type Importer struct {
	writer   ProductWriter
	validate *validator.Validate
	logger   *zap.Logger
}

func New(writer ProductWriter, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{writer: writer, validate: validator.New(), logger: logger}
}

// ImportJSON reads a JSON array in the static catalog file format.
func (i *Importer) ImportJSON(ctx context.Context, r io.Reader) (int, error) {
	products, err := catalog.Decode(r)
	if err != nil {
		return 0, err
	}
	imported := 0
	for _, p := range products {
		if err := i.save(ctx, p); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

// ImportCSV reads rows with the headers id, title, price, description,
// category, image, rating.rate and rating.count. Only id, title and price are
// required; column order is free. Blank rows are skipped.
func (i *Importer) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // rows may have trailing commas

	headers, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, required := range []string{"id", "title", "price"} {
		if _, ok := index[required]; !ok {
			return 0, fmt.Errorf("missing column %q", required)
		}
	}

	imported := 0
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		line++

		p, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		if p == nil {
			continue
		}
		if err := i.save(ctx, *p); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func (i *Importer) save(ctx context.Context, p domain.Product) error {
	if err := i.validate.Struct(p); err != nil {
		return fmt.Errorf("invalid product %q: %w", p.ID, err)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("invalid product %q: negative price", p.ID)
	}
	if _, err := i.writer.Upsert(ctx, p); err != nil {
		return fmt.Errorf("upsert product %q: %w", p.ID, err)
	}
	i.logger.Debug("imported product", zap.String("id", p.ID))
	return nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) (*domain.Product, error) {
	id := pick(record, index, "id")
	title := pick(record, index, "title")
	if id == "" && title == "" {
		return nil, nil
	}

	p := &domain.Product{
		ID:          id,
		Title:       title,
		Description: pick(record, index, "description"),
		Category:    pick(record, index, "category"),
		Image:       pick(record, index, "image"),
	}

	price, err := decimal.NewFromString(pick(record, index, "price"))
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	p.Price = price

	if s := pick(record, index, "rating.rate"); s != "" {
		rate, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("rating.rate: %w", err)
		}
		p.Rating.Rate = &rate
	}
	if s := pick(record, index, "rating.count"); s != "" {
		count, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("rating.count: %w", err)
		}
		p.Rating.Count = &count
	}
	return p, nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
