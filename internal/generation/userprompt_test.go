package generation

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/oakmind/oakmind-backend/internal/domain"
)

func TestBuildQuizUserPrompt(t *testing.T) {
	req := domain.GenerationRequest{
		UseCase:     domain.UseCaseQuizGenerate,
		RequesterID: uuid.New(),
		ContextID:   3,
		Mode:        domain.ModeRandom,
		Topic:       "제한 없음",
	}

	prompt, err := BuildQuizUserPrompt(req, nil)
	if err != nil {
		t.Fatalf("BuildQuizUserPrompt: %v", err)
	}
	if !strings.Contains(prompt, "categoryId: 3") {
		t.Error("prompt must carry the category id")
	}
	if !strings.Contains(prompt, "difficulty: mixed") {
		t.Error("random mode must ask for mixed levels")
	}
	if !strings.Contains(prompt, "topic: 제한 없음") {
		t.Error("prompt must carry the topic verbatim")
	}
	if strings.Contains(prompt, "previouslyMissedQuestions") {
		t.Error("fresh generation must not mention missed questions")
	}
}

func TestBuildQuizUserPromptFixedModeAndWrongItems(t *testing.T) {
	req := domain.GenerationRequest{
		ContextID:  7,
		Mode:       domain.ModeFixed,
		Difficulty: domain.DifficultyHard,
	}
	wrong := []WrongItem{{
		Question: "What is 2+2?",
		Options:  []string{"3", "4", "5", "6"},
		Answer:   "4",
	}}

	prompt, err := BuildQuizUserPrompt(req, wrong)
	if err != nil {
		t.Fatalf("BuildQuizUserPrompt: %v", err)
	}
	if !strings.Contains(prompt, "difficulty: HARD") {
		t.Error("fixed mode must carry the requested level")
	}
	if !strings.Contains(prompt, "previouslyMissedQuestions") {
		t.Error("regeneration must embed the missed questions")
	}
	if !strings.Contains(prompt, "What is 2+2?") {
		t.Error("missed question text must be embedded")
	}
}

func TestBuildAnalysisUserPrompt(t *testing.T) {
	prompt, err := BuildAnalysisUserPrompt(domain.GenerationRequest{ContextID: 3}, []WrongItem{{Question: "Q"}})
	if err != nil {
		t.Fatalf("BuildAnalysisUserPrompt: %v", err)
	}
	if !strings.Contains(prompt, "missedQuestions") || !strings.Contains(prompt, "categoryId: 3") {
		t.Errorf("analysis prompt incomplete: %q", prompt)
	}
}
