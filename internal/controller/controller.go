package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/musictogether/server/internal/service/room"
	"github.com/musictogether/server/pkg/validator"
	"github.com/musictogether/server/pkg/wsrouter"
)

type iRoomService interface {
	ConnectSession(*room.ConnectSessionParams) error
	DisconnectSession(context.Context, *room.DisconnectSessionParams) (room.LeaveRoomResponse, error)
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) (room.LeaveRoomResponse, error)
	UpdateState(context.Context, *room.UpdateStateParams) (room.UpdateStateResponse, error)
	RelayTrackInfo(context.Context, *room.RelayTrackInfoParams) (room.RelayTrackInfoResponse, error)
	SendChat(context.Context, *room.SendChatParams) (room.SendChatResponse, error)
	GetParticipants(ctx context.Context, code string) ([]room.Participant, error)
}

type iConnRegistry interface {
	SessionIds() []string
}

type controller struct {
	roomService iRoomService
	connCount   iConnRegistry
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	logger      *slog.Logger
	wsMux       *wsrouter.WSRouter
}

func NewController(roomService iRoomService, connCount iConnRegistry, logger *slog.Logger) *controller {
	c := &controller{
		roomService: roomService,
		connCount:   connCount,
		upgrader: websocket.Upgrader{
			// the extensions connect from music site origins
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate: validator.NewValidator(),
		logger:   logger,
	}
	c.wsMux = c.getWSRouter()

	return c
}
