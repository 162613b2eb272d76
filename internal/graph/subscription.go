package graph

import (
	"context"

	"shopsync/internal/events"
	"shopsync/internal/identity"
)

// forward relays bus events to a resolver channel until ctx ends. Events of
// an unexpected type are skipped.
func forward[T any](ctx context.Context, sub *events.Subscription, convert func(events.Event) (T, bool)) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.C():
				if !ok {
					return
				}
				v, ok := convert(ev)
				if !ok {
					continue
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (r *Resolver) ProductAdded(ctx context.Context) <-chan *productResolver {
	sub := r.bus.Subscribe(events.TopicProductAdded, nil)
	return forward(ctx, sub, func(ev events.Event) (*productResolver, bool) {
		e, ok := ev.(events.ProductAdded)
		if !ok {
			return nil, false
		}
		return &productResolver{p: e.Product}, true
	})
}

func (r *Resolver) ProductUpdated(ctx context.Context) <-chan *productResolver {
	sub := r.bus.Subscribe(events.TopicProductUpdated, nil)
	return forward(ctx, sub, func(ev events.Event) (*productResolver, bool) {
		e, ok := ev.(events.ProductUpdated)
		if !ok {
			return nil, false
		}
		return &productResolver{p: e.Product}, true
	})
}

// CartUpdated streams the caller's own cart changes. An anonymous caller gets
// a stream that never yields.
func (r *Resolver) CartUpdated(ctx context.Context) <-chan *cartResolver {
	sub := r.bus.SubscribeCart(identity.FromContext(ctx))
	return forward(ctx, sub, func(ev events.Event) (*cartResolver, bool) {
		e, ok := ev.(events.CartUpdated)
		if !ok {
			return nil, false
		}
		return &cartResolver{cart: e.Cart}, true
	})
}
