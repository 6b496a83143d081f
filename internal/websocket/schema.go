package websocket

import "github.com/stemsi/vocab-quiz/internal/engine"

// ─── Actions (Client → Server) ──────────────────────────────────────

// Action is the intent name carried by a client frame.
type Action string

const (
	ActionSelect   Action = Action(engine.ActionSelect)
	ActionCheck    Action = Action(engine.ActionCheck)
	ActionContinue Action = Action(engine.ActionContinue)
	ActionAdvance  Action = Action(engine.ActionAdvance)
	ActionRetreat  Action = Action(engine.ActionRetreat)
	ActionSubmit   Action = Action(engine.ActionSubmit)
	ActionPing     Action = "ping"
)

// IntentRequest is a learner intent sent over the stream.
type IntentRequest struct {
	Action Action `json:"action" binding:"required,oneof=select check continue advance retreat submit ping"`
	Label  string `json:"label" binding:"max=16"`
}

// Intent converts the frame into an engine intent.
func (r IntentRequest) Intent() engine.Intent {
	return engine.Intent{Action: engine.Action(r.Action), Label: r.Label}
}

// ─── Events (Server → Client) ───────────────────────────────────────

// Event names a server frame.
type Event string

const (
	EventSnapshot Event = "snapshot"
	EventRejected Event = "rejected"
	EventError    Event = "error"
	EventPong     Event = "pong"
	EventClosed   Event = "closed"
)

// SnapshotResponse carries the latest session snapshot.
type SnapshotResponse struct {
	Event    Event           `json:"event"`
	Snapshot engine.Snapshot `json:"snapshot"`
}

// RejectedResponse reports an intent that was not available in the current state.
type RejectedResponse struct {
	Event  Event  `json:"event"`
	Action Action `json:"action"`
	Reason string `json:"reason"`
}

// ErrorResponse reports a malformed frame or a server failure.
type ErrorResponse struct {
	Event  Event             `json:"event"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// PongResponse answers a ping.
type PongResponse struct {
	Event Event `json:"event"`
}

// ClosedResponse is the last frame before the server closes the stream.
type ClosedResponse struct {
	Event Event              `json:"event"`
	State engine.State `json:"state"`
}
