package cart

import "shopsync/internal/domain"

// Lines is the ordered set of a cart's lines. Each product appears at most
// once and every stored quantity is positive.
type Lines struct {
	items []domain.CartLine
}

func (l *Lines) find(productID string) int {
	for i, it := range l.items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// Quantity is the stored quantity of productID, zero when absent.
func (l *Lines) Quantity(productID string) int {
	if i := l.find(productID); i >= 0 {
		return l.items[i].Quantity
	}
	return 0
}

// Add increments an existing line or appends a new one. qty must be positive.
func (l *Lines) Add(productID string, qty int) {
	if i := l.find(productID); i >= 0 {
		l.items[i].Quantity += qty
		return
	}
	l.items = append(l.items, domain.CartLine{ProductID: productID, Quantity: qty})
}

// Set makes qty the absolute quantity of productID. A non-positive qty
// removes the line. It reports whether anything changed.
func (l *Lines) Set(productID string, qty int) bool {
	i := l.find(productID)
	switch {
	case i < 0 && qty <= 0:
		return false
	case i < 0:
		l.items = append(l.items, domain.CartLine{ProductID: productID, Quantity: qty})
	case qty <= 0:
		l.items = append(l.items[:i], l.items[i+1:]...)
	default:
		l.items[i].Quantity = qty
	}
	return true
}

func (l *Lines) Clear() {
	l.items = nil
}

func (l *Lines) Len() int {
	return len(l.items)
}

// Snapshot returns a copy that is safe to use after the lock is released.
func (l *Lines) Snapshot() []domain.CartLine {
	out := make([]domain.CartLine, len(l.items))
	copy(out, l.items)
	return out
}
