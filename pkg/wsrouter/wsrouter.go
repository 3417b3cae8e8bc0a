package wsrouter

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
)

type HandlerFunc func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error

type Middleware func(next HandlerFunc) HandlerFunc

// WSRouter dispatches JSON messages read from a websocket connection by
// their "type" field. Messages without a type go to the raw handler.
type WSRouter struct {
	routes      map[string]HandlerFunc
	raw         HandlerFunc
	middlewares []Middleware
}

func New() *WSRouter {
	return &WSRouter{routes: make(map[string]HandlerFunc)}
}

func (r *WSRouter) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, mw)
}

func (r *WSRouter) Handle(messageType string, handler HandlerFunc) {
	r.routes[messageType] = handler
}

// HandleRaw registers the handler for messages carrying no "type" field.
func (r *WSRouter) HandleRaw(handler HandlerFunc) {
	r.raw = handler
}

func (r *WSRouter) wrap(handler HandlerFunc) HandlerFunc {
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}

	return handler
}

// ServeConn reads messages from conn until the read fails and routes each
// one. Undecodable messages and messages with an unknown type are dropped
// with the connection left open. Handler errors do not terminate the loop;
// middleware is expected to report them.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			continue
		}

		handler, exists := r.routes[envelope.Type]
		if envelope.Type == "" {
			handler, exists = r.raw, r.raw != nil
		}
		if !exists {
			continue
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, envelope.Type)
		_ = r.wrap(handler)(msgCtx, conn, data)
	}
}
