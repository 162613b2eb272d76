// Package cart implements the cart operations clients call. Every successful
// change is broadcast to the owner's live subscribers before the call returns.
package cart

import (
	"context"
	"math"

	"go.uber.org/zap"

	"shopsync/internal/domain"
	"shopsync/internal/events"
	"shopsync/internal/identity"
	cartrepo "shopsync/internal/repository/cart"
)

// MaxQuantity bounds a single line so it fits the API's 32-bit Int.
const MaxQuantity = math.MaxInt32

type Publisher interface {
	Publish(events.Event)
}

type Service struct {
	repo      cartrepo.Repository
	catalog   ProductLookup
	publisher Publisher
	logger    *zap.Logger
}

func New(repo cartrepo.Repository, catalog ProductLookup, publisher Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, catalog: catalog, publisher: publisher, logger: logger}
}

func userID(owner identity.Identity) (string, error) {
	id, ok := owner.ID()
	if !ok {
		return "", domain.ErrUnauthenticated
	}
	return id, nil
}

// Get returns owner's priced cart, creating an empty one on first access.
func (s *Service) Get(_ context.Context, owner identity.Identity) (domain.Cart, error) {
	id, err := userID(owner)
	if err != nil {
		return domain.Cart{}, err
	}
	return Price(s.repo.View(id), s.catalog), nil
}

// AddItem increases the quantity of productID by qty, inserting the line if
// needed. An add that would push the line past MaxQuantity is rejected and
// leaves the cart untouched.
func (s *Service) AddItem(_ context.Context, owner identity.Identity, productID string, qty int) (domain.Cart, error) {
	id, err := userID(owner)
	if err != nil {
		return domain.Cart{}, err
	}
	if _, ok := s.catalog.Get(productID); !ok {
		return domain.Cart{}, domain.ErrProductNotFound
	}
	if qty <= 0 {
		return domain.Cart{}, domain.ErrInvalidQuantity
	}
	if qty > MaxQuantity {
		return domain.Cart{}, domain.ErrQuantityTooLarge
	}

	var cart domain.Cart
	err = s.repo.Update(id, func(l *cartrepo.Lines) error {
		if l.Quantity(productID) > MaxQuantity-qty {
			return domain.ErrQuantityTooLarge
		}
		l.Add(productID, qty)
		cart = s.commit(owner, l)
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	s.logger.Debug("cart item added",
		zap.String("user_id", id),
		zap.String("product_id", productID),
		zap.Int("quantity", qty),
	)
	return cart, nil
}

// SetItemQuantity makes qty the absolute quantity of productID. A
// non-positive qty removes the line. Removing a line that is not in the cart
// returns the cart unchanged and publishes nothing.
func (s *Service) SetItemQuantity(_ context.Context, owner identity.Identity, productID string, qty int) (domain.Cart, error) {
	id, err := userID(owner)
	if err != nil {
		return domain.Cart{}, err
	}
	if _, ok := s.catalog.Get(productID); !ok {
		return domain.Cart{}, domain.ErrProductNotFound
	}
	if qty > MaxQuantity {
		return domain.Cart{}, domain.ErrQuantityTooLarge
	}

	var cart domain.Cart
	err = s.repo.Update(id, func(l *cartrepo.Lines) error {
		if !l.Set(productID, qty) {
			cart = Price(l.Snapshot(), s.catalog)
			return nil
		}
		cart = s.commit(owner, l)
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	s.logger.Debug("cart item quantity set",
		zap.String("user_id", id),
		zap.String("product_id", productID),
		zap.Int("quantity", qty),
	)
	return cart, nil
}

func (s *Service) RemoveItem(ctx context.Context, owner identity.Identity, productID string) (domain.Cart, error) {
	return s.SetItemQuantity(ctx, owner, productID, 0)
}

// Clear empties owner's cart in one step and publishes a single update.
func (s *Service) Clear(_ context.Context, owner identity.Identity) (domain.Cart, error) {
	id, err := userID(owner)
	if err != nil {
		return domain.Cart{}, err
	}

	var cart domain.Cart
	err = s.repo.Update(id, func(l *cartrepo.Lines) error {
		l.Clear()
		cart = s.commit(owner, l)
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	s.logger.Debug("cart cleared", zap.String("user_id", id))
	return cart, nil
}

// commit prices the new state and publishes it. It runs under the owner's
// lock so updates for one owner reach subscribers in commit order.
func (s *Service) commit(owner identity.Identity, l *cartrepo.Lines) domain.Cart {
	cart := Price(l.Snapshot(), s.catalog)
	if s.publisher != nil {
		s.publisher.Publish(events.CartUpdated{Owner: owner, Cart: cart})
	}
	return cart
}
