package ws

import (
	"time"

	"github.com/pollevbot/backend/internal/session"
)

type MessageType string

const (
	// MsgHello is sent once when a client attaches to a session.
	MsgHello MessageType = "hello"
	// MsgLogs carries a batch of drained log events plus current state.
	MsgLogs MessageType = "logs"
	// MsgGone tells a client its session no longer exists in the registry.
	MsgGone MessageType = "gone"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

type HelloPayload struct {
	Token     string        `json:"token"`
	State     session.State `json:"state"`
	Alive     bool          `json:"alive"`
	StartedAt time.Time     `json:"startedAt"`
}

type LogsPayload struct {
	Token  string             `json:"token"`
	State  session.State      `json:"state"`
	Alive  bool               `json:"alive"`
	Events []session.LogEvent `json:"events,omitempty"`
}

type GonePayload struct {
	Token string `json:"token"`
}
