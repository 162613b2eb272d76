package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"shopsync/internal/subscription"
)

// State is the connection state of a Transport.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrTransportClosed is returned by Connected when the transport is disposed
// or recreated before the awaited connection came up.
var ErrTransportClosed = errors.New("transport closed")

// Request is one GraphQL operation sent over the socket.
type Request struct {
	Query         string
	OperationName string
	Variables     map[string]interface{}
}

// Sink receives the results of a subscription. Any callback may be nil.
type Sink struct {
	Next     func(payload json.RawMessage)
	Error    func(err error)
	Complete func()
}

// ReconnectBackOff is the default reconnect schedule: 1s doubling up to 30s,
// retried forever.
func ReconnectBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.MaxInterval = 30 * time.Second
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

type TransportOption func(*Transport)

func WithBackOff(newBackOff func() backoff.BackOff) TransportOption {
	return func(t *Transport) { t.newBackOff = newBackOff }
}

// WithKeepAlive sets the ping interval. Zero disables pings.
func WithKeepAlive(d time.Duration) TransportOption {
	return func(t *Transport) { t.keepAlive = d }
}

func WithDialer(d *websocket.Dialer) TransportOption {
	return func(t *Transport) { t.dialer = d }
}

// WithStateListener is called on every state change with the generation it
// belongs to, in the order the changes happened. It runs without the
// transport's lock held, so it may call back into the transport.
func WithStateListener(fn func(gen uint64, s State)) TransportOption {
	return func(t *Transport) { t.onState = fn }
}

const ackTimeout = 10 * time.Second

// Transport keeps at most one graphql-transport-ws connection open and
// reconnects it with backoff. Every Recreate starts a new generation;
// anything still running for an older generation is ignored.
type Transport struct {
	url        string
	dialer     *websocket.Dialer
	keepAlive  time.Duration
	newBackOff func() backoff.BackOff
	onState    func(gen uint64, s State)
	logger     *zap.Logger

	mu      sync.Mutex
	gen     uint64
	state   State
	running bool
	cancel  context.CancelFunc
	ready   *readiness
	conn    *socket
	subs    map[string]*clientSub
	stopped chan struct{}
	changes []stateChange

	notifyMu sync.Mutex
}

type stateChange struct {
	gen   uint64
	state State
}

// readiness is resolved once, when a connection finishes its handshake, or
// abandoned when the generation stops first.
type readiness struct {
	ch    chan struct{}
	fired bool
	ok    bool
}

func newReadiness() *readiness {
	return &readiness{ch: make(chan struct{})}
}

func (r *readiness) resolve(ok bool) {
	if r.fired {
		return
	}
	r.fired = true
	r.ok = ok
	close(r.ch)
}

type clientSub struct {
	id   string
	req  Request
	sink Sink
}

func NewTransport(url string, logger *zap.Logger, opts ...TransportOption) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Transport{
		url:        url,
		dialer:     &websocket.Dialer{Subprotocols: []string{subscription.Subprotocol}, HandshakeTimeout: 10 * time.Second},
		keepAlive:  10 * time.Second,
		newBackOff: ReconnectBackOff,
		logger:     logger,
		subs:       make(map[string]*clientSub),
	}
	for _, opt := range opts {
		opt(t)
	}
	if len(t.dialer.Subprotocols) == 0 {
		t.dialer.Subprotocols = []string{subscription.Subprotocol}
	}
	return t
}

// State reports the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Generation is bumped by every Recreate and Dispose.
func (t *Transport) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}

// Recreate drops the current connection and its subscriptions and starts a
// new one authenticated with credential. An empty credential connects
// anonymously.
func (t *Transport) Recreate(credential string) {
	t.mu.Lock()
	stopped := t.stopLocked()
	t.gen++
	gen := t.gen
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.running = true
	t.ready = newReadiness()
	t.stopped = make(chan struct{})
	done := t.stopped
	t.mu.Unlock()

	t.notify()
	t.waitStopped(stopped)
	go t.run(ctx, gen, credential, done)
}

// Dispose closes the connection and forgets every subscription. It is safe
// to call repeatedly and on a transport that never connected.
func (t *Transport) Dispose() {
	t.mu.Lock()
	if !t.running {
		t.subs = make(map[string]*clientSub)
		t.mu.Unlock()
		return
	}
	stopped := t.stopLocked()
	t.gen++
	t.mu.Unlock()
	t.notify()
	t.waitStopped(stopped)
}

// stopLocked cancels the running generation. The caller waits on the
// returned channel after releasing the lock.
func (t *Transport) stopLocked() chan struct{} {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	if t.conn != nil {
		t.conn.close()
		t.conn = nil
	}
	if t.ready != nil {
		t.ready.resolve(false)
		t.ready = nil
	}
	t.subs = make(map[string]*clientSub)
	t.running = false
	t.setStateLocked(t.gen, Disconnected)
	return t.stopped
}

func (t *Transport) waitStopped(stopped chan struct{}) {
	if stopped == nil {
		return
	}
	select {
	case <-stopped:
	case <-time.After(ackTimeout):
		t.logger.Warn("previous connection did not stop in time")
	}
}

// Connected blocks until the current connection has completed its handshake
// and returns immediately while it stays up. After a drop it waits for the
// next connection. It fails with ErrTransportClosed if the transport is
// disposed or recreated first.
func (t *Transport) Connected(ctx context.Context) error {
	t.mu.Lock()
	ready := t.ready
	t.mu.Unlock()
	if ready == nil {
		return ErrTransportClosed
	}

	select {
	case <-ready.ch:
	case <-ctx.Done():
		return ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !ready.ok {
		return ErrTransportClosed
	}
	return nil
}

// Subscribe registers an operation. It is sent now if connected and again
// after every reconnect until the returned function is called.
func (t *Transport) Subscribe(req Request, sink Sink) (unsubscribe func()) {
	sub := &clientSub{id: uuid.NewString(), req: req, sink: sink}

	t.mu.Lock()
	t.subs[sub.id] = sub
	conn := t.conn
	t.mu.Unlock()

	if conn != nil {
		if err := conn.send(subscribeMessage(sub)); err != nil {
			t.logger.Debug("subscribe send failed; will retry on reconnect", zap.Error(err))
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			_, active := t.subs[sub.id]
			delete(t.subs, sub.id)
			conn := t.conn
			t.mu.Unlock()
			if active && conn != nil {
				_ = conn.send(subscription.Message{ID: sub.id, Type: subscription.TypeComplete})
			}
		})
	}
}

func subscribeMessage(sub *clientSub) subscription.Message {
	payload, _ := json.Marshal(subscription.SubscribePayload{
		Query:         sub.req.Query,
		OperationName: sub.req.OperationName,
		Variables:     sub.req.Variables,
	})
	return subscription.Message{ID: sub.id, Type: subscription.TypeSubscribe, Payload: payload}
}

func (t *Transport) setStateLocked(gen uint64, s State) {
	if t.gen != gen || t.state == s {
		return
	}
	t.state = s
	if t.onState != nil {
		t.changes = append(t.changes, stateChange{gen: gen, state: s})
	}
}

func (t *Transport) setState(gen uint64, s State) {
	t.mu.Lock()
	t.setStateLocked(gen, s)
	t.mu.Unlock()
	t.notify()
}

// notify delivers queued state changes outside t.mu. Only one goroutine
// drains at a time; a caller that finds the queue busy leaves its changes to
// the drainer, which checks again before giving up.
func (t *Transport) notify() {
	for {
		if !t.notifyMu.TryLock() {
			return
		}
		for {
			t.mu.Lock()
			if len(t.changes) == 0 {
				t.mu.Unlock()
				break
			}
			c := t.changes[0]
			t.changes = t.changes[1:]
			t.mu.Unlock()
			t.onState(c.gen, c.state)
		}
		t.notifyMu.Unlock()

		t.mu.Lock()
		idle := len(t.changes) == 0
		t.mu.Unlock()
		if idle {
			return
		}
	}
}

func (t *Transport) run(ctx context.Context, gen uint64, credential string, done chan struct{}) {
	defer close(done)
	b := t.newBackOff()
	log := t.logger.With(zap.Uint64("generation", gen))

	for {
		t.setState(gen, Connecting)
		err := t.connect(ctx, gen, credential, b)
		if ctx.Err() != nil {
			return
		}
		t.setState(gen, Disconnected)

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			log.Warn("giving up reconnecting", zap.Error(err))
			return
		}
		log.Debug("connection lost, retrying", zap.Error(err), zap.Duration("wait", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
