package seed

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestProductsAreWellFormed(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range products {
		if p.ID == "" || p.Title == "" {
			t.Fatalf("expected id and title, got %+v", p)
		}
		if seen[p.ID] {
			t.Fatalf("duplicate id %s", p.ID)
		}
		seen[p.ID] = true
		price, err := decimal.NewFromString(p.Price)
		if err != nil || price.IsNegative() {
			t.Fatalf("expected non-negative price for %s, got %q (%v)", p.ID, p.Price, err)
		}
		if _, err := decimal.NewFromString(p.Rate); err != nil {
			t.Fatalf("expected numeric rate for %s, got %q", p.ID, p.Rate)
		}
	}
}
