package client

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shopsync/internal/domain"
)

// CartAPI is the request/response side of the cart used by Agent.
type CartAPI interface {
	SetToken(token string)
	Cart(ctx context.Context) (domain.Cart, error)
	AddToCart(ctx context.Context, productID string, quantity int) (domain.Cart, error)
	UpdateCartItem(ctx context.Context, productID string, quantity int) (domain.Cart, error)
	ClearCart(ctx context.Context) (domain.Cart, error)
}

// Snapshot is the agent's local copy of the cart.
type Snapshot struct {
	Items []domain.CartItem
	Total decimal.Decimal
}

// TotalCount is the sum of quantities.
func (s Snapshot) TotalCount() int {
	n := 0
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

// ItemsCount is the number of distinct lines.
func (s Snapshot) ItemsCount() int {
	return len(s.Items)
}

// TotalAmount formats Total with two decimals.
func (s Snapshot) TotalAmount() string {
	return s.Total.StringFixed(2)
}

func (s Snapshot) quantity(productID string) (int, bool) {
	for _, it := range s.Items {
		if it.ProductID == productID {
			return it.Quantity, true
		}
	}
	return 0, false
}

// Agent keeps a local cart snapshot in sync with the server. Mutation
// responses and pushed cartUpdated events both replace the snapshot; the last
// one applied wins.
type Agent struct {
	api       CartAPI
	transport *Transport
	logger    *zap.Logger

	// credMu serializes credential switches so the transport's connection
	// and the registered subscription always belong to the same login.
	credMu sync.Mutex

	mu          sync.Mutex
	snapshot    Snapshot
	subGen      uint64
	unsubscribe func()
	listeners   map[int]func(Snapshot)
	nextID      int
}

func NewAgent(api CartAPI, transport *Transport, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		api:       api,
		transport: transport,
		logger:    logger,
		snapshot:  Snapshot{Items: []domain.CartItem{}},
		listeners: make(map[int]func(Snapshot)),
	}
}

// SetCredential tears down the current connection and subscription. With a
// non-empty token it reconnects as that user and subscribes to cartUpdated
// straight away; the transport sends the subscription whenever a connection
// comes up. It then waits for the connection. An error from that wait, such
// as ctx expiring while the server is unreachable, leaves the subscription in
// place and the transport retrying.
func (a *Agent) SetCredential(ctx context.Context, token string) error {
	a.credMu.Lock()
	gen := a.resetSubscription()
	a.api.SetToken(token)

	if token == "" {
		a.transport.Dispose()
		a.credMu.Unlock()
		return nil
	}

	a.transport.Recreate(token)
	a.mu.Lock()
	a.unsubscribe = a.transport.Subscribe(Request{Query: cartUpdatedDocument}, Sink{
		Next: func(payload json.RawMessage) { a.onPush(gen, payload) },
		Error: func(err error) {
			a.logger.Warn("cart subscription failed", zap.Error(err))
		},
	})
	a.mu.Unlock()
	a.credMu.Unlock()

	return a.transport.Connected(ctx)
}

// Logout drops the connection and subscription and empties the snapshot.
func (a *Agent) Logout() {
	a.credMu.Lock()
	a.resetSubscription()
	a.api.SetToken("")
	a.transport.Dispose()
	a.credMu.Unlock()
	a.replace(domain.Cart{})
}

func (a *Agent) resetSubscription() uint64 {
	a.mu.Lock()
	a.subGen++
	gen := a.subGen
	unsubscribe := a.unsubscribe
	a.unsubscribe = nil
	a.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	return gen
}

type cartUpdatedResult struct {
	Data   *struct {
		CartUpdated *domain.Cart `json:"cartUpdated"`
	} `json:"data"`
	Errors []*GraphQLError `json:"errors"`
}

func (a *Agent) onPush(gen uint64, payload json.RawMessage) {
	var res cartUpdatedResult
	if err := json.Unmarshal(payload, &res); err != nil {
		a.logger.Warn("undecodable cartUpdated payload", zap.Error(err))
		return
	}
	if len(res.Errors) > 0 {
		a.logger.Warn("cartUpdated carried errors", zap.Error(joinErrors(res.Errors)))
	}
	if res.Data == nil || res.Data.CartUpdated == nil {
		return
	}

	a.mu.Lock()
	if a.subGen != gen {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()
	a.replace(*res.Data.CartUpdated)
}

// Fetch loads the cart from the server. On failure the snapshot is kept.
func (a *Agent) Fetch(ctx context.Context) error {
	cart, err := a.api.Cart(ctx)
	if err != nil {
		return err
	}
	a.replace(cart)
	return nil
}

// Add puts one more unit of productID into the cart.
func (a *Agent) Add(ctx context.Context, productID string) error {
	return a.apply(a.api.AddToCart(ctx, productID, 1))
}

// Decrement lowers the quantity of a line present in the snapshot by one,
// removing it at zero. Products not in the snapshot are ignored.
func (a *Agent) Decrement(ctx context.Context, productID string) error {
	qty, ok := a.Snapshot().quantity(productID)
	if !ok {
		return nil
	}
	return a.apply(a.api.UpdateCartItem(ctx, productID, qty-1))
}

// Remove deletes the line for productID.
func (a *Agent) Remove(ctx context.Context, productID string) error {
	return a.apply(a.api.UpdateCartItem(ctx, productID, 0))
}

// Clear empties the cart.
func (a *Agent) Clear(ctx context.Context) error {
	return a.apply(a.api.ClearCart(ctx))
}

func (a *Agent) apply(cart domain.Cart, err error) error {
	if err != nil {
		return err
	}
	a.replace(cart)
	return nil
}

// Snapshot returns a copy of the local cart.
func (a *Agent) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copySnapshot(a.snapshot)
}

// OnChange registers fn to run after every snapshot replacement. The
// returned function unregisters it.
func (a *Agent) OnChange(fn func(Snapshot)) (remove func()) {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *Agent) replace(cart domain.Cart) {
	items := cart.Items
	if items == nil {
		items = []domain.CartItem{}
	}

	a.mu.Lock()
	a.snapshot = Snapshot{Items: items, Total: cart.Total}
	snap := copySnapshot(a.snapshot)
	listeners := make([]func(Snapshot), 0, len(a.listeners))
	for _, fn := range a.listeners {
		listeners = append(listeners, fn)
	}
	a.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func copySnapshot(s Snapshot) Snapshot {
	items := make([]domain.CartItem, len(s.Items))
	copy(items, s.Items)
	return Snapshot{Items: items, Total: s.Total}
}
