package websocket

import "github.com/stemsi/exstem-practice/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventReady  Event = "ready"
	EventResult Event = "result"
	EventError  Event = "error"
	EventPong   Event = "pong"
)

// ReadyResponse is sent once the results subscription is live.
type ReadyResponse struct {
	Event Event `json:"event"`
}

// ResultResponse carries one newly recorded practice result.
type ResultResponse struct {
	Event  Event                `json:"event"`
	Result model.PracticeResult `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
