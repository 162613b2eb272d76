package subscription

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsync/internal/catalog"
	"shopsync/internal/domain"
	"shopsync/internal/events"
	"shopsync/internal/graph"
	"shopsync/internal/identity"
	cartrepo "shopsync/internal/repository/cart"
	cartsvc "shopsync/internal/service/cart"
)

type harness struct {
	srv   *httptest.Server
	gw    *Server
	bus   *events.Bus
	carts *cartsvc.Service
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	bus := events.NewBus(nil)
	store, err := catalog.New([]domain.Product{
		{ID: "1", Title: "Backpack", Price: decimal.RequireFromString("10")},
		{ID: "2", Title: "Shirt", Price: decimal.RequireFromString("2.5")},
	}, bus, nil)
	require.NoError(t, err)
	carts := cartsvc.New(cartrepo.NewMemory(), store, bus, nil)
	schema, err := graph.NewSchema(graph.NewResolver(store, carts, bus, nil))
	require.NoError(t, err)

	gw := NewServer(schema, nil, nil, opts...)
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)
	return &harness{srv: srv, gw: gw, bus: bus, carts: carts}
}

func bearer(sub string) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"` + sub + `"}`))
	return "Bearer h." + payload + ".s"
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http")
	dialer := websocket.Dialer{Subprotocols: []string{Subprotocol}}
	ws, resp, err := dialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, Subprotocol, resp.Header.Get("Sec-WebSocket-Protocol"))
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, msg Message) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(msg))
}

func read(t *testing.T, ws *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func expectClose(t *testing.T, ws *websocket.Conn, code int) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err := ws.ReadMessage()
		if err == nil {
			continue
		}
		var ce *websocket.CloseError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, code, ce.Code)
		return
	}
}

func initPayload(auth string) json.RawMessage {
	b, _ := json.Marshal(map[string]string{"Authorization": auth})
	return b
}

func subscribePayload(query string) json.RawMessage {
	b, _ := json.Marshal(SubscribePayload{Query: query})
	return b
}

func (h *harness) handshake(t *testing.T, auth string) *websocket.Conn {
	t.Helper()
	ws := h.dial(t)
	send(t, ws, Message{Type: TypeConnectionInit, Payload: initPayload(auth)})
	require.Equal(t, TypeConnectionAck, read(t, ws).Type)
	return ws
}

func (h *harness) waitForCartSubscribers(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.bus.Subscribers(events.TopicCartUpdated) == n }, 2*time.Second, 5*time.Millisecond)
}

const cartSubscription = `subscription { cartUpdated { items { productId quantity } total } }`

type cartPayload struct {
	Data struct {
		CartUpdated struct {
			Items []struct {
				ProductID string
				Quantity  int
			}
			Total float64
		}
	}
}

func TestCartUpdatesReachOnlyTheOwner(t *testing.T) {
	h := newHarness(t)
	wsA := h.handshake(t, bearer("A"))
	wsB := h.handshake(t, bearer("B"))

	send(t, wsA, Message{ID: "a1", Type: TypeSubscribe, Payload: subscribePayload(cartSubscription)})
	send(t, wsB, Message{ID: "b1", Type: TypeSubscribe, Payload: subscribePayload(cartSubscription)})
	h.waitForCartSubscribers(t, 2)

	ctx := context.Background()
	_, err := h.carts.AddItem(ctx, identity.New("A"), "1", 1)
	require.NoError(t, err)
	_, err = h.carts.AddItem(ctx, identity.New("B"), "2", 1)
	require.NoError(t, err)
	_, err = h.carts.AddItem(ctx, identity.New("A"), "1", 2)
	require.NoError(t, err)

	var first, second cartPayload
	msg := read(t, wsA)
	require.Equal(t, TypeNext, msg.Type)
	require.Equal(t, "a1", msg.ID)
	require.NoError(t, json.Unmarshal(msg.Payload, &first))
	msg = read(t, wsA)
	require.NoError(t, json.Unmarshal(msg.Payload, &second))
	assert.Equal(t, 1, first.Data.CartUpdated.Items[0].Quantity)
	assert.Equal(t, 3, second.Data.CartUpdated.Items[0].Quantity)
	assert.Equal(t, 30.0, second.Data.CartUpdated.Total)

	var onlyB cartPayload
	msg = read(t, wsB)
	require.Equal(t, "b1", msg.ID)
	require.NoError(t, json.Unmarshal(msg.Payload, &onlyB))
	assert.Equal(t, "2", onlyB.Data.CartUpdated.Items[0].ProductID)

	require.NoError(t, wsB.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = wsB.ReadMessage()
	assert.Error(t, err, "B must not receive A's updates")
}

func TestAnonymousConnectionGetsNoCartUpdates(t *testing.T) {
	h := newHarness(t)
	ws := h.handshake(t, "")
	send(t, ws, Message{ID: "x", Type: TypeSubscribe, Payload: subscribePayload(cartSubscription)})
	h.waitForCartSubscribers(t, 1)

	_, err := h.carts.AddItem(context.Background(), identity.New("A"), "1", 1)
	require.NoError(t, err)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = ws.ReadMessage()
	assert.Error(t, err)
}

func TestQueryOverSocketCompletes(t *testing.T) {
	h := newHarness(t)
	ws := h.handshake(t, bearer("A"))

	send(t, ws, Message{ID: "q", Type: TypeSubscribe, Payload: subscribePayload(`{ categories }`)})
	next := read(t, ws)
	assert.Equal(t, TypeNext, next.Type)
	assert.Equal(t, "q", next.ID)
	done := read(t, ws)
	assert.Equal(t, TypeComplete, done.Type)
	assert.Equal(t, "q", done.ID)
}

func TestInvalidQueryReturnsError(t *testing.T) {
	h := newHarness(t)
	ws := h.handshake(t, bearer("A"))

	send(t, ws, Message{ID: "bad", Type: TypeSubscribe, Payload: subscribePayload(`{ nope }`)})
	msg := read(t, ws)
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, "bad", msg.ID)
}

func TestClientCompleteStopsSubscription(t *testing.T) {
	h := newHarness(t)
	ws := h.handshake(t, bearer("A"))

	send(t, ws, Message{ID: "s", Type: TypeSubscribe, Payload: subscribePayload(cartSubscription)})
	h.waitForCartSubscribers(t, 1)
	send(t, ws, Message{ID: "s", Type: TypeComplete})
	h.waitForCartSubscribers(t, 0)

	send(t, ws, Message{Type: TypePing})
	assert.Equal(t, TypePong, read(t, ws).Type)
}

func TestDisconnectReleasesSubscriptions(t *testing.T) {
	h := newHarness(t)
	ws := h.handshake(t, bearer("A"))
	send(t, ws, Message{ID: "s", Type: TypeSubscribe, Payload: subscribePayload(cartSubscription)})
	h.waitForCartSubscribers(t, 1)

	ws.Close()
	h.waitForCartSubscribers(t, 0)
	require.Eventually(t, func() bool { return h.gw.Connections() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestProtocolViolations(t *testing.T) {
	t.Run("subscribe before init", func(t *testing.T) {
		h := newHarness(t)
		ws := h.dial(t)
		send(t, ws, Message{ID: "1", Type: TypeSubscribe, Payload: subscribePayload(cartSubscription)})
		expectClose(t, ws, CloseUnauthorized)
	})
	t.Run("duplicate init", func(t *testing.T) {
		h := newHarness(t)
		ws := h.handshake(t, "")
		send(t, ws, Message{Type: TypeConnectionInit})
		expectClose(t, ws, CloseTooManyInitRequests)
	})
	t.Run("duplicate id", func(t *testing.T) {
		h := newHarness(t)
		ws := h.handshake(t, bearer("A"))
		send(t, ws, Message{ID: "1", Type: TypeSubscribe, Payload: subscribePayload(cartSubscription)})
		send(t, ws, Message{ID: "1", Type: TypeSubscribe, Payload: subscribePayload(cartSubscription)})
		expectClose(t, ws, CloseSubscriberExists)
	})
	t.Run("unknown type", func(t *testing.T) {
		h := newHarness(t)
		ws := h.handshake(t, "")
		send(t, ws, Message{Type: "start"})
		expectClose(t, ws, CloseBadRequest)
	})
	t.Run("init timeout", func(t *testing.T) {
		h := newHarness(t, WithInitTimeout(50*time.Millisecond))
		ws := h.dial(t)
		expectClose(t, ws, CloseInitTimeout)
	})
}

func TestSubprotocolRequired(t *testing.T) {
	h := newHarness(t)
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	expectClose(t, ws, CloseSubprotocol)
}

func TestAllowedOrigins(t *testing.T) {
	h := newHarness(t, WithAllowedOrigins("http://localhost:5173"))
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http")
	dialer := websocket.Dialer{Subprotocols: []string{Subprotocol}}

	header := map[string][]string{"Origin": {"http://evil.example"}}
	_, resp, err := dialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)

	header = map[string][]string{"Origin": {"http://localhost:5173"}}
	ws, _, err := dialer.Dial(url, header)
	require.NoError(t, err)
	ws.Close()
}
