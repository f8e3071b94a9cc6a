package websocket

import (
	"github.com/liezira/simutbk-backend/internal/engine"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer    Action = "answer"
	ActionAdvance   Action = "advance"
	ActionIntegrity Action = "integrity"
	ActionState     Action = "state"
	ActionPing      Action = "ping"
)

// RequestPayload is the single client message shape. Value carries the
// answer input for ActionAnswer; EventType carries the watcher event for
// ActionIntegrity. Other actions ignore both.
type RequestPayload struct {
	Action    Action `json:"action"`
	Value     string `json:"value,omitempty"`
	EventType string `json:"event_type,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState Event = "state"
	EventError Event = "error"
	EventPong  Event = "pong"
)

// StateResponse is the server's answer to every state-changing action: the
// full rendering snapshot, so the client never has to infer a transition.
type StateResponse struct {
	Event      Event                `json:"event"`
	Terminated bool                 `json:"terminated,omitempty"`
	State      engine.StateSnapshot `json:"state"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
