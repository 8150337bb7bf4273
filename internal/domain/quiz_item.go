package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Difficulty levels a quiz item may carry. Exactly these three values are
// accepted from the generator in random mode.
const (
	DifficultyEasy   = "EASY"
	DifficultyNormal = "NORMAL"
	DifficultyHard   = "HARD"
)

func ValidDifficulty(level string) bool {
	switch level {
	case DifficultyEasy, DifficultyNormal, DifficultyHard:
		return true
	default:
		return false
	}
}

// QuizItem is one generated multiple-choice question. Invariants enforced at
// generation time: exactly 4 non-blank options, correct answer is an exact
// string member of the options, prompt and explanation non-blank.
type QuizItem struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ContextID     int64          `gorm:"column:context_id;not null;index" json:"context_id"`
	PromptMD      string         `gorm:"column:prompt_md;not null" json:"prompt_md"`
	Options       datatypes.JSON `gorm:"column:options;type:jsonb" json:"options"`
	CorrectAnswer string         `gorm:"column:correct_answer;not null" json:"correct_answer"`
	ExplanationMD string         `gorm:"column:explanation_md;not null" json:"explanation_md"`
	Difficulty    string         `gorm:"column:difficulty;not null" json:"difficulty"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (QuizItem) TableName() string {
	return "quiz_item"
}
