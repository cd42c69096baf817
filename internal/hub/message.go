package hub

import (
	"time"

	"github.com/soar/padmux/internal/control"
)

// Server to client message types.
const (
	TypeStatus = "status"
	TypeResult = "result"
	TypeError  = "error"
)

// Client to server commands.
const (
	CmdStatus    = "status"
	CmdSetMode   = "set_mode"
	CmdSetRumble = "set_rumble"
	CmdStart     = "start"
	CmdStop      = "stop"
)

// WSMessage represents a WebSocket message sent from server to client.
type WSMessage struct {
	Type      string          `json:"type"`
	Seq       int64           `json:"seq"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
	Status    *control.Status `json:"status,omitempty"`
	Command   string          `json:"command,omitempty"` // the command a result or error answers
	Error     string          `json:"error,omitempty"`
}

// NewStatusMessage creates a "status" message carrying the full status.
func NewStatusMessage(seq int64, st *control.Status) *WSMessage {
	return &WSMessage{
		Type:      TypeStatus,
		Seq:       seq,
		Timestamp: time.Now().UnixMilli(),
		Status:    st,
	}
}

// NewResultMessage answers a command. A nil err is a success.
func NewResultMessage(cmd string, err error) *WSMessage {
	msg := &WSMessage{
		Type:      TypeResult,
		Timestamp: time.Now().UnixMilli(),
		Command:   cmd,
	}
	if err != nil {
		msg.Type = TypeError
		msg.Error = err.Error()
	}
	return msg
}

// ClientMessage represents a command sent from the client to the server.
type ClientMessage struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}
