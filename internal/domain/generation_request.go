package domain

import (
	"time"

	"github.com/google/uuid"
)

// Generation use cases. Each maps to a prompt-catalog entry and a broker topic.
const (
	UseCaseRoadmap       = "roadmap"
	UseCaseFocusGuide    = "focus-guide"
	UseCaseQuizGenerate  = "quiz-generate"
	UseCaseQuizFromWrong = "quiz-generate-from-wrong"
)

// Difficulty selection modes for a generation request.
const (
	ModeRandom = "RANDOM"
	ModeFixed  = "FIXED"
)

func ValidMode(m string) bool {
	return m == ModeRandom || m == ModeFixed
}

// GenerationRequest is the broker message for one generation attempt.
// Immutable after publish; redeliveries carry the identical payload.
type GenerationRequest struct {
	UseCase      string      `json:"use_case"`
	RequesterID  uuid.UUID   `json:"requester_id"`
	ContextID    int64       `json:"context_id"`
	Mode         string      `json:"mode"`
	Difficulty   string      `json:"difficulty,omitempty"`
	Topic        string      `json:"topic,omitempty"`
	SessionKey   string      `json:"session_key,omitempty"`
	WrongItemIDs []uuid.UUID `json:"wrong_item_ids,omitempty"`
	DedupeKey    string      `json:"dedupe_key"`
	RequestedAt  time.Time   `json:"requested_at"`
}
