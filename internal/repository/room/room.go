package room

import (
	"encoding/json"
	"errors"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrGuestNotFound     = errors.New("guest not found")
)

type CreateRoomParams struct {
	Code   string
	HostId string
}

type AddGuestParams struct {
	Code    string
	GuestId string
}

type RemoveGuestParams struct {
	Code    string
	GuestId string
}

type SetStateParams struct {
	Code  string
	State json.RawMessage
}
