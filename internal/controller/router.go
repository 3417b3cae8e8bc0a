package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (c *controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)

	r.Get("/healthz", c.Healthz)
	r.Get("/api/room-info", c.RoomInfo)

	r.HandleFunc("/ws", c.ServeWS)
	r.HandleFunc("/ws/create-room", c.ServeWSCreateRoom)
	r.HandleFunc("/ws/join-room/{room-id}", c.ServeWSJoinRoom)

	return r
}
