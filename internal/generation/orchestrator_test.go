package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oakmind/oakmind-backend/internal/domain"
	"github.com/oakmind/oakmind-backend/internal/generation/prompts"
	pkgerrors "github.com/oakmind/oakmind-backend/internal/pkg/errors"
	"github.com/oakmind/oakmind-backend/internal/pkg/logger"
)

type fakeClient struct {
	response   string
	err        error
	lastSystem string
	lastUser   string
	calls      int
}

func (f *fakeClient) Generate(_ context.Context, system, user string) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastUser = user
	return f.response, f.err
}

type fakeItemRepo struct {
	created  []*domain.QuizItem
	existing map[string]bool
	failNext error
}

func (f *fakeItemRepo) Create(_ context.Context, _ *gorm.DB, items []*domain.QuizItem) ([]*domain.QuizItem, error) {
	if f.failNext != nil {
		return nil, f.failNext
	}
	f.created = append(f.created, items...)
	return items, nil
}

func (f *fakeItemRepo) GetByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*domain.QuizItem, error) {
	var out []*domain.QuizItem
	for _, id := range ids {
		for _, it := range f.created {
			if it.ID == id {
				out = append(out, it)
			}
		}
	}
	return out, nil
}

func (f *fakeItemRepo) GetByContextID(_ context.Context, _ *gorm.DB, contextID int64) ([]*domain.QuizItem, error) {
	var out []*domain.QuizItem
	for _, it := range f.created {
		if it.ContextID == contextID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeItemRepo) ExistingPrompts(_ context.Context, _ *gorm.DB, _ int64, prompts []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, p := range prompts {
		if f.existing[p] {
			out[p] = true
		}
	}
	return out, nil
}

type fakeSessionRepo struct {
	sessions map[string]*domain.ReviewSession
	attached map[uuid.UUID]uuid.UUID
}

func (f *fakeSessionRepo) Create(_ context.Context, _ *gorm.DB, s *domain.ReviewSession) (*domain.ReviewSession, error) {
	if f.sessions == nil {
		f.sessions = map[string]*domain.ReviewSession{}
	}
	f.sessions[s.SessionKey] = s
	return s, nil
}

func (f *fakeSessionRepo) GetBySessionKey(_ context.Context, _ *gorm.DB, key string) (*domain.ReviewSession, error) {
	s, ok := f.sessions[key]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	return s, nil
}

func (f *fakeSessionRepo) AttachAnalysisResult(_ context.Context, _ *gorm.DB, sessionID, analysisID uuid.UUID) error {
	if f.attached == nil {
		f.attached = map[uuid.UUID]uuid.UUID{}
	}
	f.attached[sessionID] = analysisID
	return nil
}

type fakeAnalysisRepo struct {
	created []*domain.AnalysisResult
}

func (f *fakeAnalysisRepo) Create(_ context.Context, _ *gorm.DB, r *domain.AnalysisResult) (*domain.AnalysisResult, error) {
	f.created = append(f.created, r)
	return r, nil
}

func (f *fakeAnalysisRepo) GetByRequester(_ context.Context, _ *gorm.DB, requesterID uuid.UUID, contextID int64) ([]*domain.AnalysisResult, error) {
	var out []*domain.AnalysisResult
	for _, r := range f.created {
		if r.RequesterID == requesterID && r.ContextID == contextID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeLatestStore struct {
	ids map[string][]uuid.UUID
	err error
}

func (f *fakeLatestStore) key(r uuid.UUID, c int64) string { return fmt.Sprintf("%s:%d", r, c) }

func (f *fakeLatestStore) SetLatest(_ context.Context, r uuid.UUID, c int64, ids []uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	if f.ids == nil {
		f.ids = map[string][]uuid.UUID{}
	}
	f.ids[f.key(r, c)] = ids
	return nil
}

func (f *fakeLatestStore) GetLatest(_ context.Context, r uuid.UUID, c int64) ([]uuid.UUID, error) {
	return f.ids[f.key(r, c)], nil
}

type readyCall struct {
	requesterID uuid.UUID
	contextID   int64
	useCase     string
	itemIDs     []uuid.UUID
}

type fakeBatchNotifier struct {
	calls []readyCall
}

func (f *fakeBatchNotifier) BatchReady(requesterID uuid.UUID, contextID int64, useCase string, itemIDs []uuid.UUID) {
	f.calls = append(f.calls, readyCall{requesterID: requesterID, contextID: contextID, useCase: useCase, itemIDs: itemIDs})
}

type orchestratorFixture struct {
	orch     *Orchestrator
	client   *fakeClient
	items    *fakeItemRepo
	sessions *fakeSessionRepo
	analyses *fakeAnalysisRepo
	latest   *fakeLatestStore
	notify   *fakeBatchNotifier
}

func newFixture(t *testing.T, response string) *orchestratorFixture {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	catalog, err := prompts.Load()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	fx := &orchestratorFixture{
		client:   &fakeClient{response: response},
		items:    &fakeItemRepo{},
		sessions: &fakeSessionRepo{},
		analyses: &fakeAnalysisRepo{},
		latest:   &fakeLatestStore{},
		notify:   &fakeBatchNotifier{},
	}
	fx.orch = NewOrchestrator(log, fx.items, fx.sessions, fx.analyses, catalog, fx.client, fx.latest, fx.notify)
	return fx
}

func quizResponse(t *testing.T, contextID int64, levels []string) string {
	t.Helper()
	items := make([]map[string]any, 0, len(levels))
	for i, level := range levels {
		items = append(items, map[string]any{
			"question":    fmt.Sprintf("Generated question %d?", i),
			"options":     []string{"A", "B", "C", "D"},
			"answer":      "C",
			"explanation": "Because C.",
			"level":       level,
			"categoryId":  contextID,
		})
	}
	raw, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return "```json\n" + string(raw) + "\n```"
}

func TestRunQuizGenerateEndToEnd(t *testing.T) {
	requester := uuid.New()
	levels := []string{"EASY", "NORMAL", "HARD", "NORMAL", "EASY"}
	fx := newFixture(t, quizResponse(t, 3, levels))

	req := domain.GenerationRequest{
		UseCase:     domain.UseCaseQuizGenerate,
		RequesterID: requester,
		ContextID:   3,
		Mode:        domain.ModeRandom,
		Topic:       "제한 없음",
	}
	if err := fx.orch.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(fx.items.created) != 5 {
		t.Fatalf("persisted %d items, want 5", len(fx.items.created))
	}
	for i, it := range fx.items.created {
		if it.Difficulty != levels[i] {
			t.Errorf("item %d difficulty %q, want %q (generator order preserved)", i, it.Difficulty, levels[i])
		}
		if it.ContextID != 3 {
			t.Errorf("item %d context %d, want 3", i, it.ContextID)
		}
	}

	if !strings.Contains(fx.client.lastUser, "제한 없음") {
		t.Error("user prompt must carry the topic")
	}

	ids, err := fx.latest.GetLatest(context.Background(), requester, 3)
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if len(ids) != 5 {
		t.Fatalf("latest batch has %d ids, want 5", len(ids))
	}
	for i, id := range ids {
		if id != fx.items.created[i].ID {
			t.Errorf("latest[%d] = %s, want %s", i, id, fx.items.created[i].ID)
		}
	}

	if len(fx.notify.calls) != 1 {
		t.Fatalf("batch-ready notifications = %d, want 1", len(fx.notify.calls))
	}
	ready := fx.notify.calls[0]
	if ready.requesterID != requester || ready.contextID != 3 || ready.useCase != domain.UseCaseQuizGenerate {
		t.Errorf("notification = %+v", ready)
	}
	if len(ready.itemIDs) != 5 || ready.itemIDs[0] != fx.items.created[0].ID {
		t.Error("notification must carry the persisted item ids")
	}
}

func TestRunQuizRejectsBadBatch(t *testing.T) {
	fx := newFixture(t, `[{"question":"only one"}]`)

	err := fx.orch.Run(context.Background(), domain.GenerationRequest{
		UseCase:     domain.UseCaseQuizGenerate,
		RequesterID: uuid.New(),
		ContextID:   3,
		Mode:        domain.ModeRandom,
	})
	if !errors.Is(err, ErrContractViolation) {
		t.Fatalf("err = %v, want contract violation", err)
	}
	if len(fx.items.created) != 0 {
		t.Fatal("rejected batch must persist nothing")
	}
	if len(fx.notify.calls) != 0 {
		t.Fatal("rejected batch must not announce readiness")
	}
}

func TestRunQuizGeneratorFailurePropagates(t *testing.T) {
	fx := newFixture(t, "")
	fx.client.err = fmt.Errorf("%w: timeout", ErrGenerationUnavailable)

	err := fx.orch.Run(context.Background(), domain.GenerationRequest{
		UseCase:     domain.UseCaseQuizGenerate,
		RequesterID: uuid.New(),
		ContextID:   3,
		Mode:        domain.ModeRandom,
	})
	if !errors.Is(err, ErrGenerationUnavailable) {
		t.Fatalf("err = %v, want generation unavailable", err)
	}
}

func TestRunQuizPersistFailureIsTyped(t *testing.T) {
	fx := newFixture(t, quizResponse(t, 3, []string{"EASY", "EASY", "EASY", "EASY", "EASY"}))
	fx.items.failNext = errors.New("deadlock detected")

	err := fx.orch.Run(context.Background(), domain.GenerationRequest{
		UseCase:     domain.UseCaseQuizGenerate,
		RequesterID: uuid.New(),
		ContextID:   3,
		Mode:        domain.ModeRandom,
	})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v, want persistence failure", err)
	}
}

func TestRunFromWrongDedupsAgainstPersisted(t *testing.T) {
	fx := newFixture(t, quizResponse(t, 3, []string{"EASY", "NORMAL", "HARD", "NORMAL", "EASY"}))
	// Two of the generated questions already exist for this context.
	fx.items.existing = map[string]bool{
		"Generated question 0?": true,
		"Generated question 3?": true,
	}

	err := fx.orch.Run(context.Background(), domain.GenerationRequest{
		UseCase:     domain.UseCaseQuizFromWrong,
		RequesterID: uuid.New(),
		ContextID:   3,
		Mode:        domain.ModeRandom,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fx.items.created) != 3 {
		t.Fatalf("persisted %d items, want 3 after dedup trim", len(fx.items.created))
	}
}

func TestRunFromWrongFullyDedupedIsSuccess(t *testing.T) {
	fx := newFixture(t, quizResponse(t, 3, []string{"EASY", "NORMAL", "HARD", "NORMAL", "EASY"}))
	fx.items.existing = map[string]bool{}
	for i := 0; i < 5; i++ {
		fx.items.existing[fmt.Sprintf("Generated question %d?", i)] = true
	}

	err := fx.orch.Run(context.Background(), domain.GenerationRequest{
		UseCase:     domain.UseCaseQuizFromWrong,
		RequesterID: uuid.New(),
		ContextID:   3,
		Mode:        domain.ModeRandom,
	})
	if err != nil {
		t.Fatalf("fully deduplicated batch must be a no-op success, got %v", err)
	}
	if len(fx.items.created) != 0 {
		t.Fatal("nothing should be persisted")
	}
	if len(fx.notify.calls) != 0 {
		t.Fatal("empty batch must not announce readiness")
	}
}

func TestRunFocusGuideAttachesToSession(t *testing.T) {
	requester := uuid.New()
	fx := newFixture(t, `{"weakPoints":[{"topic":"algebra"}],"advice":"Practice algebra daily."}`)

	session := &domain.ReviewSession{ID: uuid.New(), SessionKey: "sess-9", RequesterID: requester, ContextID: 3}
	if _, err := fx.sessions.Create(context.Background(), nil, session); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	err := fx.orch.Run(context.Background(), domain.GenerationRequest{
		UseCase:     domain.UseCaseFocusGuide,
		RequesterID: requester,
		ContextID:   3,
		SessionKey:  "sess-9",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(fx.analyses.created) != 1 {
		t.Fatalf("persisted %d analyses, want 1", len(fx.analyses.created))
	}
	result := fx.analyses.created[0]
	if result.Kind != domain.UseCaseFocusGuide {
		t.Errorf("kind = %q", result.Kind)
	}
	if result.SessionID == nil || *result.SessionID != session.ID {
		t.Error("analysis must reference the session")
	}
	if got := fx.sessions.attached[session.ID]; got != result.ID {
		t.Errorf("session attachment = %s, want %s", got, result.ID)
	}
}

func TestRunFocusGuideWithoutSessionStillPersists(t *testing.T) {
	fx := newFixture(t, `{"weakPoints":[{"topic":"algebra"}],"advice":"Practice."}`)

	err := fx.orch.Run(context.Background(), domain.GenerationRequest{
		UseCase:     domain.UseCaseFocusGuide,
		RequesterID: uuid.New(),
		ContextID:   3,
		SessionKey:  "never-created",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fx.analyses.created) != 1 {
		t.Fatal("analysis must persist even without a matching session")
	}
	if fx.analyses.created[0].SessionID != nil {
		t.Fatal("no session id should be attached")
	}
}

func TestRunUnknownUseCase(t *testing.T) {
	fx := newFixture(t, "")
	err := fx.orch.Run(context.Background(), domain.GenerationRequest{UseCase: "mystery"})
	if !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("err = %v, want invalid argument", err)
	}
}
