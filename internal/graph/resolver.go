package graph

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shopsync/internal/catalog"
	"shopsync/internal/domain"
	"shopsync/internal/events"
	"shopsync/internal/identity"
)

type Catalog interface {
	List(q catalog.ListQuery) catalog.Page
	Get(id string) (domain.Product, bool)
	Categories() []string
	Add(in catalog.NewProduct) (domain.Product, error)
	Update(id string, patch catalog.ProductPatch) (domain.Product, error)
	Remove(id string) bool
}

type CartService interface {
	Get(ctx context.Context, owner identity.Identity) (domain.Cart, error)
	AddItem(ctx context.Context, owner identity.Identity, productID string, qty int) (domain.Cart, error)
	SetItemQuantity(ctx context.Context, owner identity.Identity, productID string, qty int) (domain.Cart, error)
	RemoveItem(ctx context.Context, owner identity.Identity, productID string) (domain.Cart, error)
	Clear(ctx context.Context, owner identity.Identity) (domain.Cart, error)
}

type Subscriber interface {
	Subscribe(topic events.Topic, filter events.Filter) *events.Subscription
	SubscribeCart(owner identity.Identity) *events.Subscription
}

// Resolver is the root of the schema. The caller's identity is read from the
// request context.
type Resolver struct {
	catalog Catalog
	carts   CartService
	bus     Subscriber
	logger  *zap.Logger
}

func NewResolver(catalog Catalog, carts CartService, bus Subscriber, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{catalog: catalog, carts: carts, bus: bus, logger: logger}
}

func (r *Resolver) fail(op string, err error) error {
	gerr := gqlError(err)
	if domain.CodeOf(err) == domain.CodeInternal {
		r.logger.Error("resolver failed", zap.String("operation", op), zap.Error(err))
	}
	return gerr
}

func int32Ptr(v *int32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}

func decimalPtr(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v)
	return &d
}

// Queries

func (r *Resolver) Products(args struct {
	Category *string
	Limit    *int32
	Offset   *int32
}) *productsPageResolver {
	page := r.catalog.List(catalog.ListQuery{
		Category: args.Category,
		Limit:    int32Ptr(args.Limit),
		Offset:   int32Ptr(args.Offset),
	})
	return &productsPageResolver{page: page}
}

func (r *Resolver) Product(args struct{ ID graphql.ID }) *productResolver {
	p, ok := r.catalog.Get(string(args.ID))
	if !ok {
		return nil
	}
	return &productResolver{p: p}
}

func (r *Resolver) Categories() []string {
	return r.catalog.Categories()
}

func (r *Resolver) Cart(ctx context.Context) (*cartResolver, error) {
	cart, err := r.carts.Get(ctx, identity.FromContext(ctx))
	if err != nil {
		return nil, r.fail("cart", err)
	}
	return &cartResolver{cart: cart}, nil
}

// Mutations

type ProductInput struct {
	Title       string
	Price       float64
	Description *string
	Category    *string
	Image       *string
	Rate        *float64
	Count       *int32
}

type UpdateProductInput struct {
	Title       *string
	Price       *float64
	Description *string
	Category    *string
	Image       *string
	Rate        *float64
	Count       *int32
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *Resolver) AddProduct(args struct{ Input ProductInput }) (*productResolver, error) {
	in := args.Input
	p, err := r.catalog.Add(catalog.NewProduct{
		Title:       in.Title,
		Price:       decimal.NewFromFloat(in.Price),
		Description: deref(in.Description),
		Category:    deref(in.Category),
		Image:       deref(in.Image),
		Rate:        decimalPtr(in.Rate),
		Count:       int32Ptr(in.Count),
	})
	if err != nil {
		return nil, r.fail("addProduct", err)
	}
	return &productResolver{p: p}, nil
}

func (r *Resolver) UpdateProduct(args struct {
	ID    graphql.ID
	Input UpdateProductInput
}) (*productResolver, error) {
	in := args.Input
	p, err := r.catalog.Update(string(args.ID), catalog.ProductPatch{
		Title:       in.Title,
		Price:       decimalPtr(in.Price),
		Description: in.Description,
		Category:    in.Category,
		Image:       in.Image,
		Rate:        decimalPtr(in.Rate),
		Count:       int32Ptr(in.Count),
	})
	if err != nil {
		return nil, r.fail("updateProduct", err)
	}
	return &productResolver{p: p}, nil
}

func (r *Resolver) RemoveProduct(args struct{ ID graphql.ID }) bool {
	return r.catalog.Remove(string(args.ID))
}

func (r *Resolver) AddToCart(ctx context.Context, args struct {
	ProductID graphql.ID
	Quantity  *int32
}) (*cartResolver, error) {
	qty := 1
	if args.Quantity != nil {
		qty = int(*args.Quantity)
	}
	cart, err := r.carts.AddItem(ctx, identity.FromContext(ctx), string(args.ProductID), qty)
	if err != nil {
		return nil, r.fail("addToCart", err)
	}
	return &cartResolver{cart: cart}, nil
}

func (r *Resolver) UpdateCartItem(ctx context.Context, args struct {
	ProductID graphql.ID
	Quantity  int32
}) (*cartResolver, error) {
	cart, err := r.carts.SetItemQuantity(ctx, identity.FromContext(ctx), string(args.ProductID), int(args.Quantity))
	if err != nil {
		return nil, r.fail("updateCartItem", err)
	}
	return &cartResolver{cart: cart}, nil
}

func (r *Resolver) RemoveFromCart(ctx context.Context, args struct{ ProductID graphql.ID }) (*cartResolver, error) {
	cart, err := r.carts.RemoveItem(ctx, identity.FromContext(ctx), string(args.ProductID))
	if err != nil {
		return nil, r.fail("removeFromCart", err)
	}
	return &cartResolver{cart: cart}, nil
}

func (r *Resolver) ClearCart(ctx context.Context) (*cartResolver, error) {
	cart, err := r.carts.Clear(ctx, identity.FromContext(ctx))
	if err != nil {
		return nil, r.fail("clearCart", err)
	}
	return &cartResolver{cart: cart}, nil
}
