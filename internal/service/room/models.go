package room

// Role is the closed set of positions a session can hold in a room. A
// session is never more than one of these at a time.
type Role int

const (
	RoleNone Role = iota
	RoleHost
	RoleGuest
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleGuest:
		return "guest"
	default:
		return ""
	}
}

// WireRoles is the participant-event form the browser extensions expect.
func (r Role) WireRoles() []string {
	switch r {
	case RoleHost:
		return []string{"owner"}
	case RoleGuest:
		return []string{"listener"}
	default:
		return nil
	}
}

type Participant struct {
	ClientId string   `json:"client_id"`
	Roles    []string `json:"roles"`
}

type ChatMessage struct {
	Text     string `json:"text"`
	Role     string `json:"role"`
	SenderId string `json:"senderId"`
	Id       string `json:"id"`
	SentAt   int64  `json:"sentAt"`
}
