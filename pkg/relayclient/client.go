// Package relayclient is the client side of the room relay protocol: a
// websocket transport with reconnect, request correlation for room
// create/join, and a playback sync engine.
package relayclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	reconnectDelay = 5 * time.Second
)

var (
	ErrClosed       = errors.New("client is closed")
	ErrDisconnected = errors.New("connection lost")
)

// Callbacks receive inbound server frames. All callbacks run on the
// single reader goroutine, so handlers never race each other. Nil
// callbacks are skipped.
type Callbacks struct {
	OnState       func(state PlaybackState)
	OnRoomUpdated func(participants int)
	OnChat        func(msg ChatMessage)
	OnJoined      func(clientId string, roles []string)
	OnLeft        func(clientId string, roles []string)
	OnTrackInfo   func(payload json.RawMessage)
	OnRoomLeft    func()
	OnHandshake   func(clientId, roomId string, roles []string)
	OnError       func(message string)
	OnDisconnect  func(err error)
}

// Client maintains one websocket connection to the relay server. On an
// unintended disconnect it redials with a fixed backoff; room membership
// is not restored automatically, the caller re-requests it.
type Client struct {
	url            string
	dialer         *websocket.Dialer
	callbacks      Callbacks
	requestTimeout time.Duration

	mu      sync.Mutex
	ws      *websocket.Conn
	queue   [][]byte
	dialed  bool
	closed  bool
	pending *pendingRequest
}

func New(url string, callbacks Callbacks) *Client {
	return &Client{
		url:            url,
		dialer:         websocket.DefaultDialer,
		callbacks:      callbacks,
		requestTimeout: requestTimeout,
	}
}

// Connect dials the server, flushes anything queued before the dial and
// starts the reader goroutine.
func (c *Client) Connect(ctx context.Context) error {
	ws, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ws.Close()
		return ErrClosed
	}
	c.ws = ws
	c.dialed = true
	queued := c.queue
	c.queue = nil
	c.mu.Unlock()

	for _, raw := range queued {
		ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteMessage(websocket.TextMessage, raw); err != nil {
			break
		}
	}

	go c.readLoop(ws)

	return nil
}

// Close tears the connection down for good. Any pending request is
// rejected with ErrDisconnected.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	ws := c.ws
	c.ws = nil
	c.rejectPendingLocked(ErrDisconnected)
	c.mu.Unlock()

	if ws != nil {
		return ws.Close()
	}
	return nil
}

func (c *Client) Leave() error {
	return c.send(leaveInput{Type: "leave"})
}

func (c *Client) SendState(state PlaybackState) error {
	return c.send(stateInput{Type: "state", State: state})
}

func (c *Client) SendChat(text, senderId, id string) error {
	return c.send(chatInput{Type: "chat", Text: text, SenderId: senderId, Id: id})
}

// SendTrackInfo forwards a track metadata payload verbatim. The server
// relays it without inspecting the fields beyond a shape check.
func (c *Client) SendTrackInfo(payload any) error {
	return c.send(payload)
}

func (c *Client) send(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	ws := c.ws
	if ws == nil {
		if !c.dialed {
			// Queued until the initial dial completes.
			c.queue = append(c.queue, raw)
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()
		return ErrDisconnected
	}
	c.mu.Unlock()

	ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteMessage(websocket.TextMessage, raw)
}

func (c *Client) readLoop(ws *websocket.Conn) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if !c.handleDisconnect(ws, err) {
				return
			}
			next, dialErr := c.redial()
			if dialErr != nil {
				return
			}
			ws = next
			continue
		}
		c.dispatch(raw)
	}
}

// handleDisconnect reports whether the loop should try to redial.
func (c *Client) handleDisconnect(ws *websocket.Conn, err error) bool {
	ws.Close()

	c.mu.Lock()
	if c.ws == ws {
		c.ws = nil
	}
	closed := c.closed
	c.rejectPendingLocked(ErrDisconnected)
	c.mu.Unlock()

	if closed {
		return false
	}
	if c.callbacks.OnDisconnect != nil {
		c.callbacks.OnDisconnect(err)
	}
	return true
}

func (c *Client) redial() (*websocket.Conn, error) {
	for {
		time.Sleep(reconnectDelay)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, ErrClosed
		}
		c.mu.Unlock()

		ws, _, err := c.dialer.Dial(c.url, nil)
		if err != nil {
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			ws.Close()
			return nil, ErrClosed
		}
		c.ws = ws
		c.mu.Unlock()
		return ws, nil
	}
}

func (c *Client) dispatch(raw []byte) {
	var msg serverMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	switch msg.Type {
	case "":
		if msg.ClientId != "" {
			if c.callbacks.OnHandshake != nil {
				c.callbacks.OnHandshake(msg.ClientId, msg.RoomId, msg.Roles)
			}
			return
		}
		if c.callbacks.OnTrackInfo != nil {
			c.callbacks.OnTrackInfo(json.RawMessage(raw))
		}
	case "room-created", "room-joined":
		c.resolvePending(RoomAck{
			Code:         msg.Code,
			Role:         msg.Role,
			Participants: msg.Participants,
		})
	case "room-updated":
		if c.callbacks.OnRoomUpdated != nil {
			c.callbacks.OnRoomUpdated(msg.Participants)
		}
	case "state":
		var state PlaybackState
		if err := json.Unmarshal(msg.State, &state); err != nil {
			return
		}
		if c.callbacks.OnState != nil {
			c.callbacks.OnState(state)
		}
	case "chat":
		if c.callbacks.OnChat != nil {
			c.callbacks.OnChat(ChatMessage{
				Text:     msg.Text,
				Role:     msg.Role,
				SenderId: msg.SenderId,
				Id:       msg.Id,
				SentAt:   msg.SentAt,
			})
		}
	case "joined":
		if c.callbacks.OnJoined != nil {
			c.callbacks.OnJoined(msg.ClientId, msg.Roles)
		}
	case "left":
		if c.callbacks.OnLeft != nil {
			c.callbacks.OnLeft(msg.ClientId, msg.Roles)
		}
	case "room-left":
		if c.callbacks.OnRoomLeft != nil {
			c.callbacks.OnRoomLeft()
		}
	case "error":
		if c.rejectPending(errors.New(msg.Message)) {
			return
		}
		if c.callbacks.OnError != nil {
			c.callbacks.OnError(msg.Message)
		}
	}
}
