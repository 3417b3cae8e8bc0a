package room

import (
	"context"
	"strings"
	"time"

	"github.com/musictogether/server/internal/repository/connection"
)

type SendChatParams struct {
	SessionId string
	Code      string
	Role      Role
	Text      string
	SenderId  string
	Id        string
}

type SendChatResponse struct {
	Message ChatMessage
	// Conns holds every participant except the sender.
	Conns []*connection.Conn
}

// SendChat relays a text message from either role to the rest of the room.
// The text is trimmed, capped at the configured length and stamped with a
// server-side timestamp and the sender's role.
func (s *service) SendChat(ctx context.Context, params *SendChatParams) (SendChatResponse, error) {
	code := normalizeCode(params.Code)

	text := strings.TrimSpace(params.Text)
	if text == "" {
		return SendChatResponse{}, ErrEmptyChatMessage
	}

	if runes := []rune(text); len(runes) > s.chatMaxLength {
		text = string(runes[:s.chatMaxLength])
	}

	conns, err := s.getRoomConns(ctx, code, params.SessionId)
	if err != nil {
		return SendChatResponse{}, err
	}

	return SendChatResponse{
		Message: ChatMessage{
			Text:     text,
			Role:     params.Role.String(),
			SenderId: params.SenderId,
			Id:       params.Id,
			SentAt:   time.Now().UnixMilli(),
		},
		Conns: conns,
	}, nil
}
