package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeSessionChanged  Type = "session.changed"
	TypeThemeChanged    Type = "theme.changed"
	TypeAuthLogin       Type = "auth.login"
	TypeAuthRegister    Type = "auth.register"
	TypeAuthLogout      Type = "auth.logout"
	TypeAuthRefreshed   Type = "auth.refreshed"
	TypeAuthRefreshFail Type = "auth.refresh_failed"
	TypeAuthCheckFailed Type = "auth.check_failed"
)

type Event struct {
	ID        string      `json:"id"`
	Type      Type        `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp string      `json:"timestamp"`
	ActorID   string      `json:"actor_id,omitempty"` // User the event is about
}

func New(typ Type, actorID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		ActorID:   actorID,
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
