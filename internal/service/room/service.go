package room

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/musictogether/server/internal/repository/connection"
	"github.com/musictogether/server/internal/repository/room"
	"github.com/musictogether/server/pkg/randstr"
)

var (
	// ErrRoomNotFound is the repository sentinel, re-exported so callers
	// match it without reaching into the storage layer.
	ErrRoomNotFound     = room.ErrRoomNotFound
	ErrPermissionDenied = errors.New("permission denied")
	ErrMalformedMessage = errors.New("malformed message")
	ErrEmptyChatMessage = errors.New("empty chat message")
)

// RoomCodeAlphabet excludes glyphs that are easy to misread (0/O, 1/I).
const (
	RoomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	RoomCodeLength   = 5
)

type iRoomRepo interface {
	CreateRoom(context.Context, *room.CreateRoomParams) error
	RemoveRoom(ctx context.Context, code string) error
	GetRoomHostId(ctx context.Context, code string) (string, error)
	AddGuest(context.Context, *room.AddGuestParams) error
	RemoveGuest(context.Context, *room.RemoveGuestParams) error
	GetGuestIds(ctx context.Context, code string) ([]string, error)
	SetState(context.Context, *room.SetStateParams) error
	GetState(ctx context.Context, code string) (json.RawMessage, error)
}

type iConnRepo interface {
	Add(conn *connection.Conn, sessionId string) error
	RemoveBySessionId(sessionId string) error
	GetConn(sessionId string) (*connection.Conn, error)
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

type service struct {
	roomRepo      iRoomRepo
	connRepo      iConnRepo
	generator     iGenerator
	logger        *slog.Logger
	chatMaxLength int

	// mu serializes multi-step membership transitions across rooms so a
	// join can never interleave with the destruction of the same room.
	// Socket writes happen strictly after it is released.
	mu sync.Mutex
}

func NewService(roomRepo iRoomRepo, connRepo iConnRepo, chatMaxLength int, logger *slog.Logger) *service {
	return &service{
		roomRepo:      roomRepo,
		connRepo:      connRepo,
		generator:     randstr.New([]byte(RoomCodeAlphabet)),
		logger:        logger,
		chatMaxLength: chatMaxLength,
	}
}
