package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"shopsync/internal/subscription"
)

const writeWait = 10 * time.Second

// socket serializes writes to one websocket connection.
type socket struct {
	ws   *websocket.Conn
	mu   sync.Mutex
	once sync.Once
}

func (s *socket) send(msg subscription.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return s.ws.WriteJSON(msg)
}

func (s *socket) close() {
	s.once.Do(func() {
		_ = s.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = s.ws.Close()
	})
}

// connect runs one connection attempt of generation gen until the socket
// drops or ctx ends.
func (t *Transport) connect(ctx context.Context, gen uint64, credential string, b backoff.BackOff) error {
	ws, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	sock := &socket{ws: ws}
	defer sock.close()

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			sock.close()
		case <-stopWatch:
		}
	}()

	params := map[string]string{}
	if credential != "" {
		params["Authorization"] = "Bearer " + credential
	}
	payload, _ := json.Marshal(params)
	if err := sock.send(subscription.Message{Type: subscription.TypeConnectionInit, Payload: payload}); err != nil {
		return fmt.Errorf("send connection_init: %w", err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(ackTimeout))
	var ack subscription.Message
	if err := ws.ReadJSON(&ack); err != nil {
		return fmt.Errorf("await connection_ack: %w", err)
	}
	if ack.Type != subscription.TypeConnectionAck {
		return fmt.Errorf("unexpected %q before connection_ack", ack.Type)
	}
	_ = ws.SetReadDeadline(time.Time{})

	t.mu.Lock()
	if t.gen != gen || ctx.Err() != nil {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	t.conn = sock
	if t.ready != nil {
		t.ready.resolve(true)
	}
	pending := make([]*clientSub, 0, len(t.subs))
	for _, sub := range t.subs {
		pending = append(pending, sub)
	}
	t.setStateLocked(gen, Connected)
	t.mu.Unlock()
	t.notify()

	defer func() {
		t.mu.Lock()
		if t.conn == sock {
			t.conn = nil
		}
		if t.gen == gen && t.ready != nil && t.ready.fired {
			t.ready = newReadiness()
		}
		t.mu.Unlock()
	}()

	b.Reset()
	t.logger.Debug("connected", zap.Uint64("generation", gen), zap.Int("subscriptions", len(pending)))

	for _, sub := range pending {
		if err := sock.send(subscribeMessage(sub)); err != nil {
			return fmt.Errorf("resubscribe: %w", err)
		}
	}

	if t.keepAlive > 0 {
		go t.ping(sock, stopWatch)
	}

	return t.readLoop(gen, sock)
}

func (t *Transport) ping(sock *socket, stop <-chan struct{}) {
	ticker := time.NewTicker(t.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := sock.send(subscription.Message{Type: subscription.TypePing}); err != nil {
				sock.close()
				return
			}
		}
	}
}

func (t *Transport) readLoop(gen uint64, sock *socket) error {
	for {
		var msg subscription.Message
		if err := sock.ws.ReadJSON(&msg); err != nil {
			return err
		}

		switch msg.Type {
		case subscription.TypePing:
			_ = sock.send(subscription.Message{Type: subscription.TypePong})
		case subscription.TypePong:
		case subscription.TypeNext:
			if sub := t.lookup(gen, msg.ID, false); sub != nil && sub.sink.Next != nil {
				sub.sink.Next(msg.Payload)
			}
		case subscription.TypeError:
			if sub := t.lookup(gen, msg.ID, true); sub != nil && sub.sink.Error != nil {
				sub.sink.Error(decodeErrors(msg.Payload))
			}
		case subscription.TypeComplete:
			if sub := t.lookup(gen, msg.ID, true); sub != nil && sub.sink.Complete != nil {
				sub.sink.Complete()
			}
		default:
			t.logger.Debug("ignoring unexpected message", zap.String("type", msg.Type))
		}
	}
}

// lookup finds an active subscription of the current generation. Messages
// for superseded generations or unknown ids are dropped.
func (t *Transport) lookup(gen uint64, id string, remove bool) *clientSub {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		return nil
	}
	sub, ok := t.subs[id]
	if !ok {
		return nil
	}
	if remove {
		delete(t.subs, id)
	}
	return sub
}

func decodeErrors(payload json.RawMessage) error {
	var errs []*GraphQLError
	if err := json.Unmarshal(payload, &errs); err != nil || len(errs) == 0 {
		return errors.New("subscription failed")
	}
	return joinErrors(errs)
}
