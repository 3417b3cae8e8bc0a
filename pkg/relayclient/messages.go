package relayclient

import "encoding/json"

// PlaybackState is the playback snapshot relayed from the room host to
// every guest. Timestamp is unix milliseconds at capture time.
type PlaybackState struct {
	URL       string  `json:"url"`
	Time      float64 `json:"time"`
	Paused    bool    `json:"paused"`
	Title     string  `json:"title"`
	Timestamp int64   `json:"timestamp"`
}

// ChatMessage is a chat entry as delivered by the server.
type ChatMessage struct {
	Text     string `json:"text"`
	Role     string `json:"role"`
	SenderId string `json:"senderId"`
	Id       string `json:"id"`
	SentAt   int64  `json:"sentAt"`
}

// RoomAck is the resolved result of a create or join request.
type RoomAck struct {
	Code         string
	Role         string
	Participants int
}

// serverMessage is the superset of every inbound frame. The server sends
// a few frames without a type field (the session handshake and the track
// metadata pass-through), so dispatch looks at which fields are set.
type serverMessage struct {
	Type         string          `json:"type"`
	Code         string          `json:"code"`
	Role         string          `json:"role"`
	Participants int             `json:"participants"`
	State        json.RawMessage `json:"state"`
	Message      string          `json:"message"`
	ClientId     string          `json:"client_id"`
	RoomId       string          `json:"room_id"`
	Roles        []string        `json:"roles"`
	Text         string          `json:"text"`
	SenderId     string          `json:"senderId"`
	Id           string          `json:"id"`
	SentAt       int64           `json:"sentAt"`
}

type createInput struct {
	Type string `json:"type"`
}

type joinInput struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

type leaveInput struct {
	Type string `json:"type"`
}

type stateInput struct {
	Type  string        `json:"type"`
	State PlaybackState `json:"state"`
}

type chatInput struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	SenderId string `json:"senderId"`
	Id       string `json:"id"`
}
