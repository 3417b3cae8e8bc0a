package controller

import (
	"context"

	"github.com/musictogether/server/internal/repository/connection"
	"github.com/musictogether/server/internal/service/room"
)

type contextKey int

const (
	sessionCtxKey contextKey = iota
)

// session is the per-socket state machine: unbound, host of one room, or
// guest of one room. It is owned by the connection's reader goroutine and
// never shared, so it needs no locking.
type session struct {
	id   string
	role room.Role
	code string
	conn *connection.Conn
}

func (s *session) bound() bool {
	return s.role != room.RoleNone && s.code != ""
}

func (s *session) reset() {
	s.role = room.RoleNone
	s.code = ""
}

func (c *controller) sessionFromCtx(ctx context.Context) *session {
	sess, ok := ctx.Value(sessionCtxKey).(*session)
	if !ok {
		return nil
	}

	return sess
}
