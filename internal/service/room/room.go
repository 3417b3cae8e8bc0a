package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/musictogether/server/internal/repository/connection"
	"github.com/musictogether/server/internal/repository/room"
)

type ConnectSessionParams struct {
	Conn      *connection.Conn
	SessionId string
}

func (s *service) ConnectSession(params *ConnectSessionParams) error {
	if err := s.connRepo.Add(params.Conn, params.SessionId); err != nil {
		return fmt.Errorf("failed to register connection: %w", err)
	}

	return nil
}

type CreateRoomParams struct {
	SessionId string
}

type CreateRoomResponse struct {
	Code         string
	Participants int
}

// CreateRoom allocates a fresh code and binds the session as the room's
// host. The collision retry is bounded only by keyspace exhaustion, which
// 32^5 live rooms will not reach.
func (s *service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		code := s.generator.GenerateRandomString(RoomCodeLength)
		err := s.roomRepo.CreateRoom(ctx, &room.CreateRoomParams{
			Code:   code,
			HostId: params.SessionId,
		})
		if err != nil {
			if errors.Is(err, room.ErrRoomAlreadyExists) {
				continue
			}

			s.logger.InfoContext(ctx, "failed to create room", "error", err)
			return CreateRoomResponse{}, err
		}

		s.logger.InfoContext(ctx, "room created", "code", code, "host_id", params.SessionId)
		return CreateRoomResponse{Code: code, Participants: 1}, nil
	}
}

type JoinRoomParams struct {
	SessionId string
	Code      string
}

type JoinRoomResponse struct {
	Code         string
	Participants int
	State        json.RawMessage
	// Conns covers every participant, the joiner included, for the
	// joined/room-updated fan-out.
	Conns []*connection.Conn
}

func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := normalizeCode(params.Code)

	if _, err := s.roomRepo.GetRoomHostId(ctx, code); err != nil {
		return JoinRoomResponse{}, err
	}

	if err := s.roomRepo.AddGuest(ctx, &room.AddGuestParams{
		Code:    code,
		GuestId: params.SessionId,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to add guest", "error", err)
		return JoinRoomResponse{}, err
	}

	state, err := s.roomRepo.GetState(ctx, code)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get room state", "error", err)
		return JoinRoomResponse{}, err
	}

	participants, err := s.participantCount(ctx, code)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	conns, err := s.getRoomConns(ctx, code, "")
	if err != nil {
		return JoinRoomResponse{}, err
	}

	s.logger.InfoContext(ctx, "guest joined room", "code", code, "guest_id", params.SessionId)

	return JoinRoomResponse{
		Code:         code,
		Participants: participants,
		State:        state,
		Conns:        conns,
	}, nil
}

type LeaveRoomParams struct {
	SessionId string
	Code      string
	Role      Role
}

type LeaveRoomResponse struct {
	RoomDestroyed bool
	Participants  int
	// Conns holds the participants to notify: the former guests when the
	// room was destroyed, otherwise everyone who remains.
	Conns []*connection.Conn
}

// LeaveRoom tears down the session's membership. A host departure destroys
// the room; a guest departure shrinks it. Leaving an already-gone room is a
// no-op.
func (s *service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) (LeaveRoomResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := normalizeCode(params.Code)

	if params.Role == RoleHost {
		return s.destroyRoom(ctx, code, params.SessionId)
	}

	if err := s.roomRepo.RemoveGuest(ctx, &room.RemoveGuestParams{
		Code:    code,
		GuestId: params.SessionId,
	}); err != nil && !errors.Is(err, room.ErrGuestNotFound) {
		s.logger.InfoContext(ctx, "failed to remove guest", "error", err)
	}

	participants, err := s.participantCount(ctx, code)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return LeaveRoomResponse{}, nil
		}

		return LeaveRoomResponse{}, err
	}

	conns, err := s.getRoomConns(ctx, code, params.SessionId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return LeaveRoomResponse{}, nil
		}

		return LeaveRoomResponse{}, err
	}

	s.logger.InfoContext(ctx, "guest left room", "code", code, "guest_id", params.SessionId)

	return LeaveRoomResponse{Participants: participants, Conns: conns}, nil
}

func (s *service) destroyRoom(ctx context.Context, code, hostId string) (LeaveRoomResponse, error) {
	storedHostId, err := s.roomRepo.GetRoomHostId(ctx, code)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return LeaveRoomResponse{RoomDestroyed: true}, nil
		}

		return LeaveRoomResponse{}, err
	}

	if storedHostId != hostId {
		return LeaveRoomResponse{}, ErrPermissionDenied
	}

	guestConns, err := s.getGuestConns(ctx, code)
	if err != nil {
		return LeaveRoomResponse{}, err
	}

	if err := s.roomRepo.RemoveRoom(ctx, code); err != nil {
		s.logger.InfoContext(ctx, "failed to remove room", "error", err)
		return LeaveRoomResponse{}, err
	}

	s.logger.InfoContext(ctx, "room destroyed", "code", code)

	return LeaveRoomResponse{RoomDestroyed: true, Conns: guestConns}, nil
}

type DisconnectSessionParams struct {
	SessionId string
	Code      string
	Role      Role
}

// DisconnectSession drops the socket registration and, when the session was
// bound to a room, applies the same teardown as an explicit leave.
func (s *service) DisconnectSession(ctx context.Context, params *DisconnectSessionParams) (LeaveRoomResponse, error) {
	if err := s.connRepo.RemoveBySessionId(params.SessionId); err != nil &&
		!errors.Is(err, connection.ErrNotFound) {
		s.logger.InfoContext(ctx, "failed to remove connection", "error", err)
	}

	if params.Role == RoleNone || params.Code == "" {
		return LeaveRoomResponse{}, nil
	}

	return s.LeaveRoom(ctx, &LeaveRoomParams{
		SessionId: params.SessionId,
		Code:      params.Code,
		Role:      params.Role,
	})
}
