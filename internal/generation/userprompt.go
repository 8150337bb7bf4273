package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oakmind/oakmind-backend/internal/domain"
)

// WrongItem is the compact, input-only view of a previously missed question
// that gets embedded into regeneration and analysis prompts.
type WrongItem struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
}

// BuildQuizUserPrompt serializes the domain context for a quiz-generation
// call: category, difficulty selection and optional topic, plus the wrong
// items for the regeneration use case.
func BuildQuizUserPrompt(req domain.GenerationRequest, wrongItems []WrongItem) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "categoryId: %d\n", req.ContextID)

	switch req.Mode {
	case domain.ModeFixed:
		fmt.Fprintf(&b, "difficulty: %s (apply this level to every question)\n", req.Difficulty)
	default:
		b.WriteString("difficulty: mixed (choose a level per question)\n")
	}

	if topic := strings.TrimSpace(req.Topic); topic != "" {
		fmt.Fprintf(&b, "topic: %s\n", topic)
	}

	if len(wrongItems) > 0 {
		raw, err := json.Marshal(wrongItems)
		if err != nil {
			return "", err
		}
		b.WriteString("previouslyMissedQuestions (input only, do not repeat in output):\n")
		b.Write(raw)
		b.WriteString("\n")
	}

	return b.String(), nil
}

// BuildAnalysisUserPrompt serializes the wrong-answer set for the focus-guide
// use case.
func BuildAnalysisUserPrompt(req domain.GenerationRequest, wrongItems []WrongItem) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "categoryId: %d\n", req.ContextID)
	if topic := strings.TrimSpace(req.Topic); topic != "" {
		fmt.Fprintf(&b, "topic: %s\n", topic)
	}

	raw, err := json.Marshal(wrongItems)
	if err != nil {
		return "", err
	}
	b.WriteString("missedQuestions (input only, do not repeat in output):\n")
	b.Write(raw)
	b.WriteString("\n")

	return b.String(), nil
}
