package room

import (
	"context"
	"encoding/json"

	"github.com/musictogether/server/internal/repository/connection"
	"github.com/musictogether/server/internal/repository/room"
)

type UpdateStateParams struct {
	SessionId string
	Code      string
	State     json.RawMessage
}

type UpdateStateResponse struct {
	Conns []*connection.Conn
}

// UpdateState stores the host's snapshot wholesale and returns the guest
// connections to fan it out to. The snapshot is authoritative and opaque;
// the relay never inspects or reorders it. A sender that is not the room's
// host gets ErrPermissionDenied.
func (s *service) UpdateState(ctx context.Context, params *UpdateStateParams) (UpdateStateResponse, error) {
	code := normalizeCode(params.Code)

	if err := s.checkHost(ctx, code, params.SessionId); err != nil {
		return UpdateStateResponse{}, err
	}

	if len(params.State) == 0 {
		return UpdateStateResponse{}, ErrMalformedMessage
	}

	if err := s.roomRepo.SetState(ctx, &room.SetStateParams{
		Code:  code,
		State: params.State,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to set state", "error", err)
		return UpdateStateResponse{}, err
	}

	conns, err := s.getGuestConns(ctx, code)
	if err != nil {
		return UpdateStateResponse{}, err
	}

	return UpdateStateResponse{Conns: conns}, nil
}

type RelayTrackInfoParams struct {
	SessionId string
	Code      string
	Payload   json.RawMessage
}

type RelayTrackInfoResponse struct {
	Conns []*connection.Conn
}

// RelayTrackInfo forwards the typeless track announcement verbatim. The
// only validation is a coarse shape check; this channel is deliberately
// permissive so the extension can announce metadata ahead of playback.
func (s *service) RelayTrackInfo(ctx context.Context, params *RelayTrackInfoParams) (RelayTrackInfoResponse, error) {
	code := normalizeCode(params.Code)

	if err := s.checkHost(ctx, code, params.SessionId); err != nil {
		return RelayTrackInfoResponse{}, err
	}

	if !hasTrackShape(params.Payload) {
		return RelayTrackInfoResponse{}, ErrMalformedMessage
	}

	conns, err := s.getGuestConns(ctx, code)
	if err != nil {
		return RelayTrackInfoResponse{}, err
	}

	return RelayTrackInfoResponse{Conns: conns}, nil
}

func (s *service) checkHost(ctx context.Context, code, sessionId string) error {
	hostId, err := s.roomRepo.GetRoomHostId(ctx, code)
	if err != nil {
		return err
	}

	if hostId != sessionId {
		return ErrPermissionDenied
	}

	return nil
}

// hasTrackShape reports whether the payload carries at least one of the
// fields a track announcement is expected to have.
func hasTrackShape(payload json.RawMessage) bool {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return false
	}

	if _, ok := fields["title"].(string); ok {
		return true
	}
	if _, ok := fields["video_id"].(string); ok {
		return true
	}
	if _, ok := fields["seconds"].(float64); ok {
		return true
	}
	if _, ok := fields["status"].(float64); ok {
		return true
	}

	return false
}
