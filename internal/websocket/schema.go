package websocket

import (
	"github.com/google/uuid"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionFinish   Action = "finish"
	ActionPing     Action = "ping"
)

// RequestPayload carries every client message. QuestionID and the answer
// fields are only read for autosave.
type RequestPayload struct {
	Action               Action      `json:"action"`
	QuestionID           *uuid.UUID  `json:"question_id,omitempty"`
	AnswerText           *string     `json:"answer_text,omitempty"`
	SelectedAlternatives []uuid.UUID `json:"selected_alternatives,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventSaved    Event = "saved"
	EventFinished Event = "finished"
	EventPong     Event = "pong"
)

type SavedResponse struct {
	Event      Event     `json:"event"`
	QuestionID uuid.UUID `json:"question_id"`
}

type FinishedResponse struct {
	Event        Event   `json:"event"`
	TotalPoints  float64 `json:"total_points"`
	MaxPoints    float64 `json:"max_points"`
	AnswersCount int     `json:"answers_count"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
