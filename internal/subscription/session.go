package subscription

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	graphql "github.com/graph-gophers/graphql-go"
	"go.uber.org/zap"

	"shopsync/internal/identity"
)

// handle processes one client message and reports whether the session
// should keep reading.
func (c *conn) handle(msg Message) bool {
	switch msg.Type {
	case TypeConnectionInit:
		return c.onInit(msg)
	case TypePing:
		c.write(Message{Type: TypePong})
		return true
	case TypePong:
		return true
	case TypeSubscribe:
		return c.onSubscribe(msg)
	case TypeComplete:
		c.stop(msg.ID)
		return true
	default:
		c.close(CloseBadRequest, "Invalid message received")
		return false
	}
}

func (c *conn) onInit(msg Message) bool {
	c.mu.Lock()
	if c.initSeen {
		c.mu.Unlock()
		c.close(CloseTooManyInitRequests, "Too many initialisation requests")
		return false
	}
	c.initSeen = true
	c.mu.Unlock()

	var params InitPayload
	if len(msg.Payload) > 0 && string(msg.Payload) != "null" {
		if err := json.Unmarshal(msg.Payload, &params); err != nil {
			c.close(CloseBadRequest, "Invalid connection_init payload")
			return false
		}
	}
	owner := c.srv.extractor.FromHeader(params.Authorization)

	c.mu.Lock()
	c.owner = owner
	c.acked = true
	c.mu.Unlock()

	c.logger.Debug("websocket session initialised", zap.Stringer("owner", owner))
	c.write(Message{Type: TypeConnectionAck})
	return true
}

func (c *conn) onSubscribe(msg Message) bool {
	c.mu.Lock()
	if !c.acked {
		c.mu.Unlock()
		c.close(CloseUnauthorized, "Unauthorized")
		return false
	}
	if msg.ID == "" {
		c.mu.Unlock()
		c.close(CloseBadRequest, "Subscribe message requires an id")
		return false
	}
	if _, exists := c.ops[msg.ID]; exists {
		c.mu.Unlock()
		c.close(CloseSubscriberExists, "Subscriber for "+msg.ID+" already exists")
		return false
	}
	var payload SubscribePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.Query == "" {
		c.mu.Unlock()
		c.close(CloseBadRequest, "Invalid subscribe payload")
		return false
	}
	ctx, cancel := context.WithCancel(identity.WithContext(c.ctx, c.owner))
	op := &operation{cancel: cancel}
	c.ops[msg.ID] = op
	c.wg.Add(1)
	c.mu.Unlock()

	go c.execute(ctx, msg.ID, op, payload)
	return true
}

type operation struct {
	cancel context.CancelFunc
}

func (c *conn) execute(ctx context.Context, id string, op *operation, payload SubscribePayload) {
	defer c.wg.Done()
	defer c.finish(id, op)

	results, err := c.srv.exec.Subscribe(ctx, payload.Query, payload.OperationName, payload.Variables)
	if err != nil {
		c.logger.Error("operation failed to start", zap.String("op_id", id), zap.Error(err))
		c.sendErrors(id, []map[string]interface{}{{"message": err.Error()}})
		return
	}

	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-results:
			if !ok {
				if ctx.Err() == nil {
					c.finish(id, op)
					c.write(Message{ID: id, Type: TypeComplete})
				}
				return
			}
			resp, _ := v.(*graphql.Response)
			if resp == nil {
				continue
			}
			// errors before any data mean the operation never started
			if first && resp.Data == nil && len(resp.Errors) > 0 {
				c.sendPayload(id, TypeError, resp.Errors)
				return
			}
			first = false
			c.sendPayload(id, TypeNext, resp)
		}
	}
}

// finish forgets op so its id may be reused.
func (c *conn) finish(id string, op *operation) {
	c.mu.Lock()
	if c.ops[id] == op {
		delete(c.ops, id)
	}
	c.mu.Unlock()
	op.cancel()
}

// stop ends operation id at the client's request. No complete is sent back.
func (c *conn) stop(id string) {
	c.mu.Lock()
	op, ok := c.ops[id]
	delete(c.ops, id)
	c.mu.Unlock()
	if ok {
		op.cancel()
	}
}

func (c *conn) sendErrors(id string, errs []map[string]interface{}) {
	c.sendPayload(id, TypeError, errs)
}

func (c *conn) sendPayload(id, typ string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("encode payload", zap.String("op_id", id), zap.Error(err))
		return
	}
	c.write(Message{ID: id, Type: typ, Payload: b})
}

func (c *conn) write(msg Message) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(msg); err != nil {
		c.logger.Debug("websocket write failed", zap.String("type", msg.Type), zap.Error(err))
		c.cancel()
	}
}

// close sends a close frame with code and tears the socket down. Only the
// first call has any effect.
func (c *conn) close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		c.writeMu.Unlock()
		c.cancel()
		_ = c.ws.Close()
		if code != websocket.CloseNormalClosure {
			c.logger.Debug("websocket closed", zap.Int("code", code), zap.String("reason", reason))
		}
	})
}
