package events

import (
	"sync"

	"go.uber.org/zap"

	"shopsync/internal/identity"
)

// Bus fans events out to subscribers of a topic. Publish never blocks on a
// slow subscriber: each subscription buffers without bound and delivers in
// publish order.
type Bus struct {
	logger *zap.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[Topic]map[uint64]*Subscription
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger: logger,
		subs:   make(map[Topic]map[uint64]*Subscription),
	}
}

// Subscribe registers interest in topic. Events rejected by filter are
// dropped before they are queued.
func (b *Bus) Subscribe(topic Topic, filter Filter) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	s := newSubscription(b, topic, b.nextID, filter)
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]*Subscription)
	}
	b.subs[topic][s.id] = s
	return s
}

// SubscribeCart subscribes to cart updates owned by owner.
func (b *Bus) SubscribeCart(owner identity.Identity) *Subscription {
	return b.Subscribe(TopicCartUpdated, OwnedBy(owner))
}

// Publish enqueues ev for every current subscriber of its topic and returns
// without waiting for delivery.
func (b *Bus) Publish(ev Event) {
	topic := ev.Topic()

	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, s := range b.subs[topic] {
		if s.filter != nil && !s.filter(ev) {
			continue
		}
		if s.enqueue(ev) {
			delivered++
		}
	}
	b.logger.Debug("event published",
		zap.String("topic", string(topic)),
		zap.Int("subscribers", delivered),
	)
}

// Subscribers returns the number of live subscriptions on topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m := b.subs[s.topic]; m != nil {
		delete(m, s.id)
		if len(m) == 0 {
			delete(b.subs, s.topic)
		}
	}
}
