package generation

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/oakmind/oakmind-backend/internal/domain"
)

const optionCount = 4

// QuizContract is the structural and business-rule schema one generated quiz
// batch must satisfy before anything is persisted.
type QuizContract struct {
	ItemCount  int
	ContextID  int64
	Mode       string // domain.ModeFixed or domain.ModeRandom
	Difficulty string // required level when Mode is fixed
}

// QuizDraft is one validated, not-yet-persisted quiz item.
type QuizDraft struct {
	Question    string
	Options     []string
	Answer      string
	Explanation string
	Difficulty  string
}

type rawQuizItem struct {
	Question    *string     `json:"question"`
	Options     []string    `json:"options"`
	Answer      *string     `json:"answer"`
	Explanation *string     `json:"explanation"`
	Level       *string     `json:"level"`
	CategoryID  json.Number `json:"categoryId"`
}

// ValidateQuizBatch parses sanitized generator output against the contract.
// All-or-nothing: the first violation rejects the entire batch.
func ValidateQuizBatch(sanitized string, contract QuizContract) ([]QuizDraft, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(sanitized)))
	dec.UseNumber()

	var items []rawQuizItem
	if err := dec.Decode(&items); err != nil {
		return nil, violationf(MalformedOutput, "output is not a JSON array of items: %v", err)
	}

	if len(items) != contract.ItemCount {
		return nil, violationf(WrongItemCount, "expected %d items, got %d", contract.ItemCount, len(items))
	}

	drafts := make([]QuizDraft, 0, len(items))
	for i, item := range items {
		draft, err := validateQuizItem(i, item, contract)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, draft)
	}
	return drafts, nil
}

func validateQuizItem(idx int, item rawQuizItem, contract QuizContract) (QuizDraft, error) {
	question, err := requiredString(idx, "question", item.Question)
	if err != nil {
		return QuizDraft{}, err
	}
	answer, err := requiredString(idx, "answer", item.Answer)
	if err != nil {
		return QuizDraft{}, err
	}
	explanation, err := requiredString(idx, "explanation", item.Explanation)
	if err != nil {
		return QuizDraft{}, err
	}

	if len(item.Options) != optionCount {
		return QuizDraft{}, violationf(InvalidOptions, "item %d: expected %d options, got %d", idx, optionCount, len(item.Options))
	}
	for j, opt := range item.Options {
		if strings.TrimSpace(opt) == "" {
			return QuizDraft{}, violationf(InvalidOptions, "item %d: option %d is blank", idx, j)
		}
	}

	// Exact string identity, no trimming or case folding. This is what keeps
	// the persisted dataset internally consistent.
	if !containsExact(item.Options, answer) {
		return QuizDraft{}, violationf(AnswerNotInOptions, "item %d: answer is not one of the options", idx)
	}

	level, err := resolveDifficulty(idx, item.Level, contract)
	if err != nil {
		return QuizDraft{}, err
	}

	// The generator must echo the caller's category id; a silent substitution
	// would misfile the whole batch.
	if err := checkContextEcho(idx, item.CategoryID, contract.ContextID); err != nil {
		return QuizDraft{}, err
	}

	return QuizDraft{
		Question:    question,
		Options:     item.Options,
		Answer:      answer,
		Explanation: explanation,
		Difficulty:  level,
	}, nil
}

func requiredString(idx int, field string, val *string) (string, error) {
	if val == nil {
		return "", violationf(MissingField, "item %d: missing %q", idx, field)
	}
	if strings.TrimSpace(*val) == "" {
		return "", violationf(BlankField, "item %d: %q is blank", idx, field)
	}
	return *val, nil
}

func containsExact(options []string, answer string) bool {
	for _, opt := range options {
		if opt == answer {
			return true
		}
	}
	return false
}

func resolveDifficulty(idx int, level *string, contract QuizContract) (string, error) {
	// Fixed mode: the request wins. The generator's own level field is
	// informational only and is overwritten wholesale.
	if contract.Mode == domain.ModeFixed {
		return contract.Difficulty, nil
	}

	if level == nil {
		return "", violationf(MissingField, "item %d: missing %q", idx, "level")
	}
	if !domain.ValidDifficulty(*level) {
		return "", violationf(InvalidDifficulty, "item %d: unknown difficulty %q", idx, *level)
	}
	return *level, nil
}

func checkContextEcho(idx int, got json.Number, want int64) error {
	if got.String() == "" {
		return violationf(MissingField, "item %d: missing %q", idx, "categoryId")
	}
	parsed, err := strconv.ParseInt(got.String(), 10, 64)
	if err != nil {
		return violationf(ContextMismatch, "item %d: categoryId %q is not an integer", idx, got.String())
	}
	if parsed != want {
		return violationf(ContextMismatch, "item %d: categoryId %d does not match request context %d", idx, parsed, want)
	}
	return nil
}

// analysisPayload is the minimal shape the focus-guide contract enforces; the
// full payload stays opaque to the rest of the system.
type analysisPayload struct {
	WeakPoints []json.RawMessage `json:"weakPoints"`
	Advice     *string           `json:"advice"`
}

// ValidateAnalysis checks the focus-guide object shape and returns the payload
// verbatim for storage.
func ValidateAnalysis(sanitized string) (json.RawMessage, error) {
	var payload analysisPayload
	if err := json.Unmarshal([]byte(sanitized), &payload); err != nil {
		return nil, violationf(MalformedOutput, "output is not a JSON object: %v", err)
	}
	if len(payload.WeakPoints) == 0 {
		return nil, violationf(MissingField, "analysis: weakPoints is empty")
	}
	if payload.Advice == nil {
		return nil, violationf(MissingField, "analysis: missing advice")
	}
	if strings.TrimSpace(*payload.Advice) == "" {
		return nil, violationf(BlankField, "analysis: advice is blank")
	}
	return json.RawMessage(sanitized), nil
}

type roadmapPayload struct {
	Summary *string           `json:"summary"`
	Steps   []json.RawMessage `json:"steps"`
}

// ValidateRoadmap checks the roadmap object shape and returns the payload
// verbatim for storage.
func ValidateRoadmap(sanitized string) (json.RawMessage, error) {
	var payload roadmapPayload
	if err := json.Unmarshal([]byte(sanitized), &payload); err != nil {
		return nil, violationf(MalformedOutput, "output is not a JSON object: %v", err)
	}
	if payload.Summary == nil || strings.TrimSpace(*payload.Summary) == "" {
		return nil, violationf(BlankField, "roadmap: summary is missing or blank")
	}
	if len(payload.Steps) == 0 {
		return nil, violationf(MissingField, "roadmap: steps is empty")
	}
	return json.RawMessage(sanitized), nil
}
