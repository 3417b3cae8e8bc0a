package controller

import (
	"encoding/json"

	"github.com/musictogether/server/internal/service/room"
)

// handshakeOutput is the typeless greeting a session receives right after a
// room is established for it.
type handshakeOutput struct {
	ClientId string   `json:"client_id"`
	RoomId   string   `json:"room_id"`
	Roles    []string `json:"roles"`
}

type roomCreatedOutput struct {
	Type         string `json:"type"`
	Code         string `json:"code"`
	Role         string `json:"role"`
	Participants int    `json:"participants"`
}

type roomJoinedOutput struct {
	Type         string          `json:"type"`
	Code         string          `json:"code"`
	Role         string          `json:"role"`
	Participants int             `json:"participants"`
	State        json.RawMessage `json:"state"`
}

type roomUpdatedOutput struct {
	Type         string `json:"type"`
	Participants int    `json:"participants"`
}

type roomLeftOutput struct {
	Type string `json:"type"`
}

// participantOutput announces a single join or departure.
type participantOutput struct {
	Type     string   `json:"type"`
	ClientId string   `json:"client_id"`
	Roles    []string `json:"roles"`
}

type stateOutput struct {
	Type  string          `json:"type"`
	State json.RawMessage `json:"state"`
}

type chatOutput struct {
	Type string `json:"type"`
	room.ChatMessage
}

type errorOutput struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newErrorOutput(message string) errorOutput {
	return errorOutput{Type: "error", Message: message}
}
