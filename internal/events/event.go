// Package events is the in-process publish/subscribe bus that carries catalog
// and cart changes to live subscribers.
package events

import (
	"shopsync/internal/domain"
	"shopsync/internal/identity"
)

type Topic string

const (
	TopicProductAdded   Topic = "PRODUCT_ADDED"
	TopicProductUpdated Topic = "PRODUCT_UPDATED"
	TopicCartUpdated    Topic = "CART_UPDATED"
)

// Event is implemented only by the types in this package.
type Event interface {
	Topic() Topic
	sealed()
}

type ProductAdded struct {
	Product domain.Product
}

type ProductUpdated struct {
	Product domain.Product
}

// CartUpdated carries the full priced cart of Owner after a committed change.
type CartUpdated struct {
	Owner identity.Identity
	Cart  domain.Cart
}

func (ProductAdded) Topic() Topic   { return TopicProductAdded }
func (ProductUpdated) Topic() Topic { return TopicProductUpdated }
func (CartUpdated) Topic() Topic    { return TopicCartUpdated }

func (ProductAdded) sealed()   {}
func (ProductUpdated) sealed() {}
func (CartUpdated) sealed()    {}

// Filter decides whether a subscriber receives an event. A nil Filter
// accepts everything.
type Filter func(Event) bool

// OwnedBy accepts cart events belonging to owner. Anonymous owners receive
// nothing. Product events are not owned and always pass.
func OwnedBy(owner identity.Identity) Filter {
	return func(ev Event) bool {
		switch e := ev.(type) {
		case CartUpdated:
			return owner.Matches(e.Owner)
		case ProductAdded, ProductUpdated:
			return true
		default:
			return false
		}
	}
}
