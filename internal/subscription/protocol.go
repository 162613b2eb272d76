// Package subscription serves GraphQL operations over WebSocket using the
// graphql-transport-ws protocol.
package subscription

import "encoding/json"

// Subprotocol is the WebSocket subprotocol both sides must negotiate.
const Subprotocol = "graphql-transport-ws"

const (
	TypeConnectionInit = "connection_init"
	TypeConnectionAck  = "connection_ack"
	TypePing           = "ping"
	TypePong           = "pong"
	TypeSubscribe      = "subscribe"
	TypeNext           = "next"
	TypeError          = "error"
	TypeComplete       = "complete"
)

// Close codes defined by the protocol.
const (
	CloseBadRequest          = 4400
	CloseUnauthorized        = 4401
	CloseSubprotocol         = 4406
	CloseInitTimeout         = 4408
	CloseSubscriberExists    = 4409
	CloseTooManyInitRequests = 4429
	CloseInternal            = 4500
)

type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubscribePayload is the operation a subscribe message asks for.
type SubscribePayload struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

// InitPayload carries the connection parameters. Authorization holds the
// same "Bearer <token>" value an HTTP request would send.
type InitPayload struct {
	Authorization string `json:"Authorization,omitempty"`
}

func (p *InitPayload) UnmarshalJSON(b []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for _, key := range []string{"Authorization", "authorization"} {
		if v, ok := raw[key].(string); ok {
			p.Authorization = v
			return nil
		}
	}
	return nil
}
