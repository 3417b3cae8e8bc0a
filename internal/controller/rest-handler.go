package controller

import (
	"errors"
	"net/http"

	"github.com/musictogether/server/internal/service/room"
	"github.com/musictogether/server/pkg/rest"
)

type roomInfoQuery struct {
	RoomId string `json:"roomId" validate:"required,len=5,alphanum"`
}

// RoomInfo is the side channel a UI hits to hydrate its participant list
// without waiting for the next membership event. Unknown rooms yield an
// empty list, matching what the extensions expect.
func (c *controller) RoomInfo(w http.ResponseWriter, r *http.Request) {
	query := roomInfoQuery{RoomId: r.URL.Query().Get("roomId")}

	if validationErrors, ok := c.validate.Validate(query); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	participants, err := c.roomService.GetParticipants(r.Context(), query.RoomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			rest.WriteJSON(w, http.StatusOK, []room.Participant{})
			return
		}

		c.logger.InfoContext(r.Context(), "failed to get participants", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, participants)
}

func (c *controller) Healthz(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{
		"status":      "ok",
		"connections": len(c.connCount.SessionIds()),
	})
}
