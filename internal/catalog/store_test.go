package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsync/internal/domain"
	"shopsync/internal/events"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func sampleProducts() []domain.Product {
	return []domain.Product{
		{ID: "1", Title: "Backpack", Price: dec("109.95"), Category: "bags"},
		{ID: "2", Title: "Shirt", Price: dec("22.3"), Category: "clothing"},
		{ID: "3", Title: "Jacket", Price: dec("55.99"), Category: "clothing"},
		{ID: "x-7", Title: "Gift card", Price: dec("10"), Category: ""},
		{ID: "4", Title: "Ring", Price: dec("168"), Category: "jewelery"},
	}
}

func newStore(t *testing.T, pub Publisher) *Store {
	t.Helper()
	s, err := New(sampleProducts(), pub, nil)
	require.NoError(t, err)
	return s
}

func TestNewRejectsInvalidProducts(t *testing.T) {
	_, err := New([]domain.Product{{ID: "1"}}, nil, nil)
	assert.Error(t, err, "missing title")

	_, err = New([]domain.Product{{ID: "1", Title: "a"}, {ID: "1", Title: "b"}}, nil, nil)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = New([]domain.Product{{ID: "1", Title: "a", Price: dec("-1")}}, nil, nil)
	assert.Error(t, err, "negative price")
}

func TestList(t *testing.T) {
	s := newStore(t, nil)

	cases := []struct {
		name    string
		query   ListQuery
		ids     []string
		total   int
		hasMore bool
	}{
		{"all", ListQuery{}, []string{"1", "2", "3", "x-7", "4"}, 5, false},
		{"category", ListQuery{Category: strPtr("clothing")}, []string{"2", "3"}, 2, false},
		{"empty category means all", ListQuery{Category: strPtr("")}, []string{"1", "2", "3", "x-7", "4"}, 5, false},
		{"unknown category", ListQuery{Category: strPtr("toys")}, []string{}, 0, false},
		{"first page", ListQuery{Limit: intPtr(2)}, []string{"1", "2"}, 5, true},
		{"middle page", ListQuery{Limit: intPtr(2), Offset: intPtr(2)}, []string{"3", "x-7"}, 5, true},
		{"last page", ListQuery{Limit: intPtr(2), Offset: intPtr(4)}, []string{"4"}, 5, false},
		{"exact end", ListQuery{Limit: intPtr(5)}, []string{"1", "2", "3", "x-7", "4"}, 5, false},
		{"offset without limit", ListQuery{Offset: intPtr(3)}, []string{"x-7", "4"}, 5, false},
		{"offset past end", ListQuery{Limit: intPtr(2), Offset: intPtr(10)}, []string{}, 5, false},
		{"negative offset", ListQuery{Limit: intPtr(1), Offset: intPtr(-3)}, []string{"1"}, 5, true},
		{"negative limit", ListQuery{Limit: intPtr(-1)}, []string{}, 5, true},
		{"category paged", ListQuery{Category: strPtr("clothing"), Limit: intPtr(1)}, []string{"2"}, 2, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page := s.List(tc.query)
			ids := make([]string, 0, len(page.Items))
			for _, p := range page.Items {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tc.ids, ids)
			assert.Equal(t, tc.total, page.Total)
			assert.Equal(t, tc.hasMore, page.HasMore)
		})
	}
}

func TestCategoriesFirstSeenOrder(t *testing.T) {
	s := newStore(t, nil)
	assert.Equal(t, []string{"bags", "clothing", "jewelery"}, s.Categories())
}

func TestAddUsesNextNumericID(t *testing.T) {
	pub := &recordingPublisher{}
	s := newStore(t, pub)

	p, err := s.Add(NewProduct{Title: "Lamp", Price: dec("12.50"), Category: "home"})
	require.NoError(t, err)
	assert.Equal(t, "5", p.ID)

	got, ok := s.Get("5")
	require.True(t, ok)
	assert.Equal(t, "Lamp", got.Title)
	assert.Contains(t, s.Categories(), "home")

	require.Len(t, pub.events, 1)
	added, ok := pub.events[0].(events.ProductAdded)
	require.True(t, ok)
	assert.Equal(t, "5", added.Product.ID)
}

func TestAddToEmptyCatalogStartsAtOne(t *testing.T) {
	s, err := New(nil, nil, nil)
	require.NoError(t, err)
	p, err := s.Add(NewProduct{Title: "First", Price: dec("1")})
	require.NoError(t, err)
	assert.Equal(t, "1", p.ID)
}

func TestAddValidates(t *testing.T) {
	pub := &recordingPublisher{}
	s := newStore(t, pub)

	_, err := s.Add(NewProduct{Price: dec("1")})
	assert.True(t, errors.Is(err, domain.ErrInvalidProduct))

	_, err = s.Add(NewProduct{Title: "x", Price: dec("-0.01")})
	assert.True(t, errors.Is(err, domain.ErrInvalidProduct))

	assert.Empty(t, pub.events)
	assert.Equal(t, 5, s.Len())
}

func TestUpdateIsPartial(t *testing.T) {
	pub := &recordingPublisher{}
	s := newStore(t, pub)

	price := dec("19.99")
	p, err := s.Update("2", ProductPatch{Price: &price, Count: intPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, "Shirt", p.Title)
	assert.True(t, p.Price.Equal(price))
	require.NotNil(t, p.Rating.Count)
	assert.Equal(t, 3, *p.Rating.Count)

	require.Len(t, pub.events, 1)
	_, ok := pub.events[0].(events.ProductUpdated)
	assert.True(t, ok)
}

func TestUpdateMissingProduct(t *testing.T) {
	pub := &recordingPublisher{}
	s := newStore(t, pub)

	_, err := s.Update("404", ProductPatch{Title: strPtr("x")})
	assert.True(t, errors.Is(err, domain.ErrProductNotFound))
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
	assert.Empty(t, pub.events)
}

func TestRemoveReindexes(t *testing.T) {
	s := newStore(t, nil)

	assert.True(t, s.Remove("2"))
	assert.False(t, s.Remove("2"))

	_, ok := s.Get("2")
	assert.False(t, ok)
	p, ok := s.Get("4")
	require.True(t, ok)
	assert.Equal(t, "Ring", p.Title)
	assert.Equal(t, 4, s.Len())
}

func TestDecodeAcceptsNumericAndStringIDs(t *testing.T) {
	in := `[
		{"id": 1, "title": "A", "price": 109.95, "category": "c", "rating": {"rate": 3.9, "count": 120}},
		{"id": "abc", "title": "B", "price": "5.10"}
	]`
	products, err := Decode(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, "1", products[0].ID)
	assert.True(t, products[0].Price.Equal(dec("109.95")))
	require.NotNil(t, products[0].Rating.Rate)
	assert.True(t, products[0].Rating.Rate.Equal(dec("3.9")))
	assert.Equal(t, 120, *products[0].Rating.Count)

	assert.Equal(t, "abc", products[1].ID)
	assert.Nil(t, products[1].Rating.Rate)
}

func TestDecodeRejectsBadInput(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"id": 1}`))
	assert.Error(t, err)

	_, err = Decode(strings.NewReader(`[{"id": true, "title": "x"}]`))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":1,"title":"A","price":1},{"id":2,"title":"B","price":2}]`), 0o600))

	s, err := Load(context.Background(), FileSource{Path: path}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	_, err = Load(context.Background(), FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}, nil, nil)
	assert.Error(t, err)
}

func TestBundledCatalogLoads(t *testing.T) {
	s, err := Load(context.Background(), FileSource{Path: filepath.Join("..", "..", "data.json")}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 20, s.Len())
	assert.NotEmpty(t, s.Categories())
}
