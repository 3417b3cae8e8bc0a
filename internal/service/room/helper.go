package room

import (
	"context"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/musictogether/server/internal/repository/connection"
)

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// getConns resolves session ids to live connections. Sessions whose socket
// is already gone are skipped; a closing peer must never poison delivery to
// the rest of the room.
func (s *service) getConns(sessionIds []string) []*connection.Conn {
	conns := make([]*connection.Conn, 0, len(sessionIds))
	for _, sessionId := range sessionIds {
		conn, err := s.connRepo.GetConn(sessionId)
		if err != nil {
			s.logger.Debug("skipping session without connection", "session_id", sessionId)
			continue
		}

		conns = append(conns, conn)
	}

	return conns
}

// getRoomConns returns connections of every participant except excludeId.
// Pass an empty excludeId to address the whole room.
func (s *service) getRoomConns(ctx context.Context, code, excludeId string) ([]*connection.Conn, error) {
	hostId, err := s.roomRepo.GetRoomHostId(ctx, code)
	if err != nil {
		return nil, err
	}

	guestIds, err := s.roomRepo.GetGuestIds(ctx, code)
	if err != nil {
		return nil, err
	}

	sessionIds := make([]string, 0, len(guestIds)+1)
	if hostId != excludeId {
		sessionIds = append(sessionIds, hostId)
	}
	for _, guestId := range guestIds {
		if guestId != excludeId {
			sessionIds = append(sessionIds, guestId)
		}
	}

	return s.getConns(sessionIds), nil
}

func (s *service) getGuestConns(ctx context.Context, code string) ([]*connection.Conn, error) {
	guestIds, err := s.roomRepo.GetGuestIds(ctx, code)
	if err != nil {
		return nil, err
	}

	return s.getConns(guestIds), nil
}

// GetParticipants lists the room's members, owner first, for the room-info
// side channel and join hydration.
func (s *service) GetParticipants(ctx context.Context, code string) ([]Participant, error) {
	code = normalizeCode(code)

	hostId, err := s.roomRepo.GetRoomHostId(ctx, code)
	if err != nil {
		return nil, err
	}

	guestIds, err := s.roomRepo.GetGuestIds(ctx, code)
	if err != nil {
		return nil, err
	}

	slices.Sort(guestIds)

	participants := make([]Participant, 0, len(guestIds)+1)
	participants = append(participants, Participant{ClientId: hostId, Roles: RoleHost.WireRoles()})
	for _, guestId := range guestIds {
		participants = append(participants, Participant{ClientId: guestId, Roles: RoleGuest.WireRoles()})
	}

	return participants, nil
}

func (s *service) participantCount(ctx context.Context, code string) (int, error) {
	guestIds, err := s.roomRepo.GetGuestIds(ctx, code)
	if err != nil {
		return 0, err
	}

	return 1 + len(guestIds), nil
}
