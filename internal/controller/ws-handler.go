package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/musictogether/server/internal/repository/connection"
	"github.com/musictogether/server/internal/service/room"
	"github.com/musictogether/server/pkg/ctxlogger"
)

// ServeWS upgrades the connection and leaves the session unbound; the
// client acquires a room with in-stream create/join messages.
func (c *controller) ServeWS(w http.ResponseWriter, r *http.Request) {
	c.serveWS(w, r, nil)
}

// ServeWSCreateRoom upgrades and immediately creates a room for the caller,
// mirroring the path-based form the extensions use.
func (c *controller) ServeWSCreateRoom(w http.ResponseWriter, r *http.Request) {
	c.serveWS(w, r, func(ctx context.Context, sess *session) {
		c.createRoomForSession(ctx, sess)
	})
}

// ServeWSJoinRoom upgrades and immediately joins the room in the URL.
func (c *controller) ServeWSJoinRoom(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "room-id")
	c.serveWS(w, r, func(ctx context.Context, sess *session) {
		c.joinRoomForSession(ctx, sess, code)
	})
}

func (c *controller) serveWS(w http.ResponseWriter, r *http.Request, initial func(context.Context, *session)) {
	wsConn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to upgrade connection", "error", err)
		return
	}

	sess := &session{
		id:   uuid.NewString(),
		conn: connection.NewConn(wsConn),
	}

	if err := c.roomService.ConnectSession(&room.ConnectSessionParams{
		Conn:      sess.conn,
		SessionId: sess.id,
	}); err != nil {
		c.logger.InfoContext(r.Context(), "failed to register session", "error", err)
		wsConn.Close()
		return
	}

	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("session_id", sess.id))
	ctx = context.WithValue(ctx, sessionCtxKey, sess)

	c.logger.InfoContext(ctx, "session connected")

	if initial != nil {
		initial(ctx, sess)
	}

	if err := c.wsMux.ServeConn(ctx, wsConn); err != nil &&
		!websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.DebugContext(ctx, "connection closed", "error", err)
	}

	c.finishSession(ctx, sess)
	wsConn.Close()
}

// finishSession runs the transport-close path: the membership teardown is
// the same as an explicit leave, minus the room-left acknowledgment.
func (c *controller) finishSession(ctx context.Context, sess *session) {
	role := sess.role
	resp, err := c.roomService.DisconnectSession(ctx, &room.DisconnectSessionParams{
		SessionId: sess.id,
		Code:      sess.code,
		Role:      sess.role,
	})
	if err != nil {
		c.logger.InfoContext(ctx, "failed to disconnect session", "error", err)
		return
	}

	sess.reset()
	c.notifyDeparture(ctx, sess, role, resp)
	c.logger.InfoContext(ctx, "session disconnected")
}

// notifyDeparture fans out the aftermath of a host or guest departure.
func (c *controller) notifyDeparture(ctx context.Context, sess *session, role room.Role, resp room.LeaveRoomResponse) {
	switch {
	case role == room.RoleHost && resp.RoomDestroyed:
		c.broadcast(ctx, resp.Conns, newErrorOutput("host left the room"))
	case role == room.RoleGuest:
		c.broadcast(ctx, resp.Conns, participantOutput{
			Type:     "left",
			ClientId: sess.id,
			Roles:    room.RoleGuest.WireRoles(),
		})
		c.broadcast(ctx, resp.Conns, roomUpdatedOutput{
			Type:         "room-updated",
			Participants: resp.Participants,
		})
	}
}

// teardownMembership is the explicit-leave path, also run before a bound
// session creates or joins another room.
func (c *controller) teardownMembership(ctx context.Context, sess *session) error {
	if !sess.bound() {
		return nil
	}

	role := sess.role
	resp, err := c.roomService.LeaveRoom(ctx, &room.LeaveRoomParams{
		SessionId: sess.id,
		Code:      sess.code,
		Role:      sess.role,
	})
	if err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	sess.reset()
	c.notifyDeparture(ctx, sess, role, resp)

	if err := sess.conn.WriteJSON(roomLeftOutput{Type: "room-left"}); err != nil {
		c.logger.DebugContext(ctx, "failed to write leave ack", "error", err)
	}

	return nil
}

func (c *controller) createRoomForSession(ctx context.Context, sess *session) error {
	if err := c.teardownMembership(ctx, sess); err != nil {
		return err
	}

	resp, err := c.roomService.CreateRoom(ctx, &room.CreateRoomParams{SessionId: sess.id})
	if err != nil {
		sess.conn.WriteJSON(newErrorOutput("failed to create room"))
		return fmt.Errorf("failed to create room: %w", err)
	}

	sess.role = room.RoleHost
	sess.code = resp.Code

	sess.conn.WriteJSON(handshakeOutput{
		ClientId: sess.id,
		RoomId:   resp.Code,
		Roles:    room.RoleHost.WireRoles(),
	})
	sess.conn.WriteJSON(roomCreatedOutput{
		Type:         "room-created",
		Code:         resp.Code,
		Role:         room.RoleHost.String(),
		Participants: resp.Participants,
	})
	sess.conn.WriteJSON(participantOutput{
		Type:     "joined",
		ClientId: sess.id,
		Roles:    room.RoleHost.WireRoles(),
	})

	return nil
}

func (c *controller) joinRoomForSession(ctx context.Context, sess *session, code string) error {
	if err := c.teardownMembership(ctx, sess); err != nil {
		return err
	}

	resp, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		SessionId: sess.id,
		Code:      code,
	})
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			sess.conn.WriteJSON(newErrorOutput("Room not found"))
			return nil
		}

		return fmt.Errorf("failed to join room: %w", err)
	}

	sess.role = room.RoleGuest
	sess.code = resp.Code

	sess.conn.WriteJSON(handshakeOutput{
		ClientId: sess.id,
		RoomId:   resp.Code,
		Roles:    room.RoleGuest.WireRoles(),
	})
	sess.conn.WriteJSON(roomJoinedOutput{
		Type:         "room-joined",
		Code:         resp.Code,
		Role:         room.RoleGuest.String(),
		Participants: resp.Participants,
		State:        resp.State,
	})
	c.broadcast(ctx, resp.Conns, participantOutput{
		Type:     "joined",
		ClientId: sess.id,
		Roles:    room.RoleGuest.WireRoles(),
	})
	c.broadcast(ctx, resp.Conns, roomUpdatedOutput{
		Type:         "room-updated",
		Participants: resp.Participants,
	})

	return nil
}

func (c *controller) handleCreate(ctx context.Context, _ *websocket.Conn, _ json.RawMessage) error {
	return c.createRoomForSession(ctx, c.sessionFromCtx(ctx))
}

type joinInput struct {
	Code string `json:"code" validate:"required,len=5,alphanum"`
}

func (c *controller) handleJoin(ctx context.Context, _ *websocket.Conn, payload json.RawMessage) error {
	sess := c.sessionFromCtx(ctx)

	var input joinInput
	if err := json.Unmarshal(payload, &input); err != nil {
		return fmt.Errorf("failed to unmarshal join: %w", err)
	}

	// a code that cannot exist is indistinguishable from a miss
	if _, ok := c.validate.Validate(input); !ok {
		sess.conn.WriteJSON(newErrorOutput("Room not found"))
		return nil
	}

	return c.joinRoomForSession(ctx, sess, input.Code)
}

func (c *controller) handleLeave(ctx context.Context, _ *websocket.Conn, _ json.RawMessage) error {
	sess := c.sessionFromCtx(ctx)

	// leaving is idempotent, an unbound session still gets the ack
	if !sess.bound() {
		if err := sess.conn.WriteJSON(roomLeftOutput{Type: "room-left"}); err != nil {
			c.logger.DebugContext(ctx, "failed to write leave ack", "error", err)
		}
		return nil
	}

	return c.teardownMembership(ctx, sess)
}

type stateInput struct {
	State json.RawMessage `json:"state"`
}

func (c *controller) handleState(ctx context.Context, _ *websocket.Conn, payload json.RawMessage) error {
	sess := c.sessionFromCtx(ctx)
	if sess.role != room.RoleHost || !sess.bound() {
		// unauthorized writes are dropped, never surfaced
		return nil
	}

	var input stateInput
	if err := json.Unmarshal(payload, &input); err != nil {
		return fmt.Errorf("failed to unmarshal state: %w", err)
	}

	resp, err := c.roomService.UpdateState(ctx, &room.UpdateStateParams{
		SessionId: sess.id,
		Code:      sess.code,
		State:     input.State,
	})
	if err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}

	c.broadcast(ctx, resp.Conns, stateOutput{Type: "state", State: input.State})

	return nil
}

type chatInput struct {
	Text     string `json:"text" validate:"required"`
	SenderId string `json:"senderId"`
	Id       string `json:"id"`
}

func (c *controller) handleChat(ctx context.Context, _ *websocket.Conn, payload json.RawMessage) error {
	sess := c.sessionFromCtx(ctx)
	if !sess.bound() {
		return nil
	}

	var input chatInput
	if err := json.Unmarshal(payload, &input); err != nil {
		return fmt.Errorf("failed to unmarshal chat: %w", err)
	}

	if _, ok := c.validate.Validate(input); !ok {
		return nil
	}

	resp, err := c.roomService.SendChat(ctx, &room.SendChatParams{
		SessionId: sess.id,
		Code:      sess.code,
		Role:      sess.role,
		Text:      input.Text,
		SenderId:  input.SenderId,
		Id:        input.Id,
	})
	if err != nil {
		if errors.Is(err, room.ErrEmptyChatMessage) {
			return nil
		}

		return fmt.Errorf("failed to send chat: %w", err)
	}

	c.broadcast(ctx, resp.Conns, chatOutput{Type: "chat", ChatMessage: resp.Message})

	return nil
}

// handleTrackInfo forwards the typeless track announcement verbatim.
func (c *controller) handleTrackInfo(ctx context.Context, _ *websocket.Conn, payload json.RawMessage) error {
	sess := c.sessionFromCtx(ctx)
	if sess.role != room.RoleHost || !sess.bound() {
		return nil
	}

	resp, err := c.roomService.RelayTrackInfo(ctx, &room.RelayTrackInfoParams{
		SessionId: sess.id,
		Code:      sess.code,
		Payload:   payload,
	})
	if err != nil {
		if errors.Is(err, room.ErrMalformedMessage) {
			return nil
		}

		return fmt.Errorf("failed to relay track info: %w", err)
	}

	c.broadcast(ctx, resp.Conns, payload)

	return nil
}

// broadcast delivers one payload to every connection, in order, dropping
// failed writes rather than interrupting delivery to the rest.
func (c *controller) broadcast(ctx context.Context, conns []*connection.Conn, v any) {
	for _, conn := range conns {
		if err := conn.WriteJSON(v); err != nil {
			c.logger.DebugContext(ctx, "failed to write broadcast", "error", err)
		}
	}
}
