package graph

import (
	graphql "github.com/graph-gophers/graphql-go"

	"shopsync/internal/catalog"
	"shopsync/internal/domain"
)

type productResolver struct {
	p domain.Product
}

func (r *productResolver) ID() graphql.ID       { return graphql.ID(r.p.ID) }
func (r *productResolver) Title() string        { return r.p.Title }
func (r *productResolver) Price() float64       { return r.p.Price.InexactFloat64() }
func (r *productResolver) Description() *string { return &r.p.Description }
func (r *productResolver) Category() *string    { return &r.p.Category }
func (r *productResolver) Image() *string       { return &r.p.Image }

func (r *productResolver) Rating() *ratingResolver {
	return &ratingResolver{rating: r.p.Rating}
}

type ratingResolver struct {
	rating domain.Rating
}

func (r *ratingResolver) Rate() *float64 {
	if r.rating.Rate == nil {
		return nil
	}
	v := r.rating.Rate.InexactFloat64()
	return &v
}

func (r *ratingResolver) Count() *int32 {
	if r.rating.Count == nil {
		return nil
	}
	v := int32(*r.rating.Count)
	return &v
}

type productsPageResolver struct {
	page catalog.Page
}

func (r *productsPageResolver) Items() []*productResolver {
	out := make([]*productResolver, 0, len(r.page.Items))
	for _, p := range r.page.Items {
		out = append(out, &productResolver{p: p})
	}
	return out
}

func (r *productsPageResolver) Total() int32  { return int32(r.page.Total) }
func (r *productsPageResolver) HasMore() bool { return r.page.HasMore }

type cartResolver struct {
	cart domain.Cart
}

func (r *cartResolver) Items() []*cartItemResolver {
	out := make([]*cartItemResolver, 0, len(r.cart.Items))
	for _, it := range r.cart.Items {
		out = append(out, &cartItemResolver{item: it})
	}
	return out
}

func (r *cartResolver) Total() float64 { return r.cart.Total.InexactFloat64() }

type cartItemResolver struct {
	item domain.CartItem
}

func (r *cartItemResolver) ProductID() graphql.ID { return graphql.ID(r.item.ProductID) }
func (r *cartItemResolver) Quantity() int32       { return int32(r.item.Quantity) }

// Product is null when the line refers to a product that has been removed.
func (r *cartItemResolver) Product() *productResolver {
	if r.item.Product == nil {
		return nil
	}
	return &productResolver{p: *r.item.Product}
}
