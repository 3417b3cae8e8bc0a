package room

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/musictogether/server/internal/repository/connection"
	"github.com/musictogether/server/internal/repository/connection/inmemory"
	roomRedis "github.com/musictogether/server/internal/repository/room/redis"
)

func newTestService(t *testing.T) *service {
	t.Helper()

	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	roomRepo := roomRedis.NewRepo(rc, time.Hour)
	connRepo := inmemory.NewRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewService(roomRepo, connRepo, 500, logger)
}

func connectSession(t *testing.T, s *service, sessionId string) {
	t.Helper()

	err := s.ConnectSession(&ConnectSessionParams{
		Conn:      connection.NewConn(&websocket.Conn{}),
		SessionId: sessionId,
	})
	require.NoError(t, err)
}

func TestCreateRoom(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	connectSession(t, s, "host-1")

	resp, err := s.CreateRoom(ctx, &CreateRoomParams{SessionId: "host-1"})
	require.NoError(t, err)
	assert.Len(t, resp.Code, RoomCodeLength)
	assert.Equal(t, 1, resp.Participants)

	for _, r := range resp.Code {
		assert.Contains(t, RoomCodeAlphabet, string(r), "code symbol outside alphabet")
	}
}

func TestCreateRoomCodesAreUnique(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		resp, err := s.CreateRoom(ctx, &CreateRoomParams{SessionId: "host"})
		require.NoError(t, err)
		assert.False(t, seen[resp.Code], "code %q allocated twice", resp.Code)
		seen[resp.Code] = true
	}
}

func TestJoinRoom(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	connectSession(t, s, "host-1")
	connectSession(t, s, "guest-1")

	created, err := s.CreateRoom(ctx, &CreateRoomParams{SessionId: "host-1"})
	require.NoError(t, err)

	joined, err := s.JoinRoom(ctx, &JoinRoomParams{SessionId: "guest-1", Code: created.Code})
	require.NoError(t, err)
	assert.Equal(t, created.Code, joined.Code)
	assert.Equal(t, 2, joined.Participants)
	assert.Nil(t, joined.State, "fresh room must have no stored state")
	assert.Len(t, joined.Conns, 2, "host and joiner must both be addressed")
}

func TestJoinRoomNormalizesCode(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	connectSession(t, s, "host-1")
	connectSession(t, s, "guest-1")

	created, err := s.CreateRoom(ctx, &CreateRoomParams{SessionId: "host-1"})
	require.NoError(t, err)

	joined, err := s.JoinRoom(ctx, &JoinRoomParams{
		SessionId: "guest-1",
		Code:      "  " + strings.ToLower(created.Code) + " ",
	})
	require.NoError(t, err)
	assert.Equal(t, created.Code, joined.Code)
}

func TestJoinRoomNotFound(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	connectSession(t, s, "guest-1")

	_, err := s.JoinRoom(ctx, &JoinRoomParams{SessionId: "guest-1", Code: "ZZZZZ"})
	assert.Error(t, err)
}

func TestUpdateStateFansOutToGuestsOnly(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	connectSession(t, s, "host-1")
	connectSession(t, s, "guest-1")
	connectSession(t, s, "guest-2")

	created, err := s.CreateRoom(ctx, &CreateRoomParams{SessionId: "host-1"})
	require.NoError(t, err)
	_, err = s.JoinRoom(ctx, &JoinRoomParams{SessionId: "guest-1", Code: created.Code})
	require.NoError(t, err)
	_, err = s.JoinRoom(ctx, &JoinRoomParams{SessionId: "guest-2", Code: created.Code})
	require.NoError(t, err)

	state := json.RawMessage(`{"url":"https://example.com/track","time":12.5,"paused":false,"title":"t","timestamp":1}`)
	resp, err := s.UpdateState(ctx, &UpdateStateParams{
		SessionId: "host-1",
		Code:      created.Code,
		State:     state,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Conns, 2, "state must reach every guest and never the host")

	joined, err := s.JoinRoom(ctx, &JoinRoomParams{SessionId: "guest-1", Code: created.Code})
	require.NoError(t, err)
	assert.JSONEq(t, string(state), string(joined.State), "late joiner must receive the stored snapshot")
}

func TestUpdateStateFromGuestDenied(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	connectSession(t, s, "host-1")
	connectSession(t, s, "guest-1")

	created, err := s.CreateRoom(ctx, &CreateRoomParams{SessionId: "host-1"})
	require.NoError(t, err)
	_, err = s.JoinRoom(ctx, &JoinRoomParams{SessionId: "guest-1", Code: created.Code})
	require.NoError(t, err)

	_, err = s.UpdateState(ctx, &UpdateStateParams{
		SessionId: "guest-1",
		Code:      created.Code,
		State:     json.RawMessage(`{"time":1}`),
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestHostLeaveDestroysRoom(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	connectSession(t, s, "host-1")
	connectSession(t, s, "guest-1")

	created, err := s.CreateRoom(ctx, &CreateRoomParams{SessionId: "host-1"})
	require.NoError(t, err)
	_, err = s.JoinRoom(ctx, &JoinRoomParams{SessionId: "guest-1", Code: created.Code})
	require.NoError(t, err)

	resp, err := s.LeaveRoom(ctx, &LeaveRoomParams{
		SessionId: "host-1",
		Code:      created.Code,
		Role:      RoleHost,
	})
	require.NoError(t, err)
	assert.True(t, resp.RoomDestroyed)
	assert.Len(t, resp.Conns, 1, "every guest gets exactly one destruction notice")

	_, err = s.JoinRoom(ctx, &JoinRoomParams{SessionId: "guest-1", Code: created.Code})
	assert.Error(t, err, "the code must be unresolvable after destruction")
}

func TestGuestLeaveShrinksRoom(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	connectSession(t, s, "host-1")
	connectSession(t, s, "guest-1")
	connectSession(t, s, "guest-2")

	created, err := s.CreateRoom(ctx, &CreateRoomParams{SessionId: "host-1"})
	require.NoError(t, err)
	_, err = s.JoinRoom(ctx, &JoinRoomParams{SessionId: "guest-1", Code: created.Code})
	require.NoError(t, err)
	_, err = s.JoinRoom(ctx, &JoinRoomParams{SessionId: "guest-2", Code: created.Code})
	require.NoError(t, err)

	resp, err := s.LeaveRoom(ctx, &LeaveRoomParams{
		SessionId: "guest-1",
		Code:      created.Code,
		Role:      RoleGuest,
	})
	require.NoError(t, err)
	assert.False(t, resp.RoomDestroyed)
	assert.Equal(t, 2, resp.Participants)
	assert.Len(t, resp.Conns, 2, "host and the remaining guest are notified")
}

func TestLeaveGoneRoomIsNoop(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	connectSession(t, s, "guest-1")

	resp, err := s.LeaveRoom(ctx, &LeaveRoomParams{
		SessionId: "guest-1",
		Code:      "ZZZZZ",
		Role:      RoleGuest,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Conns)
}

func TestSendChat(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	connectSession(t, s, "host-1")
	connectSession(t, s, "guest-1")

	created, err := s.CreateRoom(ctx, &CreateRoomParams{SessionId: "host-1"})
	require.NoError(t, err)
	_, err = s.JoinRoom(ctx, &JoinRoomParams{SessionId: "guest-1", Code: created.Code})
	require.NoError(t, err)

	resp, err := s.SendChat(ctx, &SendChatParams{
		SessionId: "guest-1",
		Code:      created.Code,
		Role:      RoleGuest,
		Text:      "  hello room  ",
		SenderId:  "client-abc",
		Id:        "msg-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello room", resp.Message.Text)
	assert.Equal(t, "guest", resp.Message.Role)
	assert.Equal(t, "client-abc", resp.Message.SenderId)
	assert.NotZero(t, resp.Message.SentAt)
	assert.Len(t, resp.Conns, 1, "sender must be excluded from delivery")
}

func TestSendChatTruncatesLongText(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	connectSession(t, s, "host-1")

	created, err := s.CreateRoom(ctx, &CreateRoomParams{SessionId: "host-1"})
	require.NoError(t, err)

	resp, err := s.SendChat(ctx, &SendChatParams{
		SessionId: "host-1",
		Code:      created.Code,
		Role:      RoleHost,
		Text:      strings.Repeat("я", 600),
	})
	require.NoError(t, err)
	assert.Equal(t, 500, len([]rune(resp.Message.Text)))
}

func TestSendChatEmptyRejected(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	connectSession(t, s, "host-1")

	created, err := s.CreateRoom(ctx, &CreateRoomParams{SessionId: "host-1"})
	require.NoError(t, err)

	_, err = s.SendChat(ctx, &SendChatParams{
		SessionId: "host-1",
		Code:      created.Code,
		Role:      RoleHost,
		Text:      "   ",
	})
	assert.ErrorIs(t, err, ErrEmptyChatMessage)
}

func TestRelayTrackInfoShapeGate(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	connectSession(t, s, "host-1")
	connectSession(t, s, "guest-1")

	created, err := s.CreateRoom(ctx, &CreateRoomParams{SessionId: "host-1"})
	require.NoError(t, err)
	_, err = s.JoinRoom(ctx, &JoinRoomParams{SessionId: "guest-1", Code: created.Code})
	require.NoError(t, err)

	resp, err := s.RelayTrackInfo(ctx, &RelayTrackInfoParams{
		SessionId: "host-1",
		Code:      created.Code,
		Payload:   json.RawMessage(`{"title":"Song","video_id":"abc123","seconds":240,"status":1}`),
	})
	require.NoError(t, err)
	assert.Len(t, resp.Conns, 1)

	_, err = s.RelayTrackInfo(ctx, &RelayTrackInfoParams{
		SessionId: "host-1",
		Code:      created.Code,
		Payload:   json.RawMessage(`{"foo":"bar"}`),
	})
	assert.ErrorIs(t, err, ErrMalformedMessage)

	_, err = s.RelayTrackInfo(ctx, &RelayTrackInfoParams{
		SessionId: "guest-1",
		Code:      created.Code,
		Payload:   json.RawMessage(`{"title":"Song"}`),
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestGetParticipantsOwnerFirst(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	connectSession(t, s, "host-1")
	connectSession(t, s, "guest-1")

	created, err := s.CreateRoom(ctx, &CreateRoomParams{SessionId: "host-1"})
	require.NoError(t, err)
	_, err = s.JoinRoom(ctx, &JoinRoomParams{SessionId: "guest-1", Code: created.Code})
	require.NoError(t, err)

	participants, err := s.GetParticipants(ctx, created.Code)
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, "host-1", participants[0].ClientId)
	assert.Equal(t, []string{"owner"}, participants[0].Roles)
	assert.Equal(t, []string{"listener"}, participants[1].Roles)
}

func TestDisconnectSessionTearsDownMembership(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	connectSession(t, s, "host-1")
	connectSession(t, s, "guest-1")

	created, err := s.CreateRoom(ctx, &CreateRoomParams{SessionId: "host-1"})
	require.NoError(t, err)
	_, err = s.JoinRoom(ctx, &JoinRoomParams{SessionId: "guest-1", Code: created.Code})
	require.NoError(t, err)

	resp, err := s.DisconnectSession(ctx, &DisconnectSessionParams{
		SessionId: "host-1",
		Code:      created.Code,
		Role:      RoleHost,
	})
	require.NoError(t, err)
	assert.True(t, resp.RoomDestroyed)
	assert.Len(t, resp.Conns, 1)
}
