package controller

import (
	"github.com/musictogether/server/pkg/wsrouter"
)

func (c *controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()

	mux.Use(c.wsRequestIdMw())
	mux.Use(c.wsLoggerMw())

	// room membership
	mux.Handle("create", c.handleCreate)
	mux.Handle("join", c.handleJoin)
	mux.Handle("leave", c.handleLeave)

	// playback
	mux.Handle("state", c.handleState)

	// chat
	mux.Handle("chat", c.handleChat)

	// typeless track announcements from the host
	mux.HandleRaw(c.handleTrackInfo)

	return mux
}
