package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/oakmind/oakmind-backend/internal/data/repos"
	"github.com/oakmind/oakmind-backend/internal/domain"
	"github.com/oakmind/oakmind-backend/internal/generation/prompts"
	"github.com/oakmind/oakmind-backend/internal/notify"
	pkgerrors "github.com/oakmind/oakmind-backend/internal/pkg/errors"
	"github.com/oakmind/oakmind-backend/internal/pkg/logger"
)

// Orchestrator runs one generation attempt end to end: prompt assembly,
// generator call, sanitize, contract validation, late dedup, persist. It does
// not retry; the broker owns that policy and calls Run again on retryable
// failures.
type Orchestrator struct {
	log      *logger.Logger
	items    repos.QuizItemRepo
	sessions repos.ReviewSessionRepo
	analyses repos.AnalysisResultRepo
	catalog  *prompts.Catalog
	client   Client
	latest   LatestStore
	notify   notify.BatchNotifier
}

func NewOrchestrator(
	log *logger.Logger,
	items repos.QuizItemRepo,
	sessions repos.ReviewSessionRepo,
	analyses repos.AnalysisResultRepo,
	catalog *prompts.Catalog,
	client Client,
	latest LatestStore,
	batchNotify notify.BatchNotifier,
) *Orchestrator {
	return &Orchestrator{
		log:      log.With("service", "GenerationOrchestrator"),
		items:    items,
		sessions: sessions,
		analyses: analyses,
		catalog:  catalog,
		client:   client,
		latest:   latest,
		notify:   batchNotify,
	}
}

func (o *Orchestrator) Run(ctx context.Context, req domain.GenerationRequest) error {
	switch req.UseCase {
	case domain.UseCaseQuizGenerate, domain.UseCaseQuizFromWrong:
		return o.runQuiz(ctx, req)
	case domain.UseCaseFocusGuide:
		return o.runAnalysis(ctx, req, domain.UseCaseFocusGuide)
	case domain.UseCaseRoadmap:
		return o.runAnalysis(ctx, req, domain.UseCaseRoadmap)
	default:
		return fmt.Errorf("%w: unknown use case %q", pkgerrors.ErrInvalidArgument, req.UseCase)
	}
}

func (o *Orchestrator) runQuiz(ctx context.Context, req domain.GenerationRequest) error {
	prompt, err := o.catalog.Get(req.UseCase)
	if err != nil {
		return err
	}

	var wrongItems []WrongItem
	if req.UseCase == domain.UseCaseQuizFromWrong {
		wrongItems, err = o.loadWrongItems(ctx, req.WrongItemIDs)
		if err != nil {
			return fmt.Errorf("%w: load wrong items: %v", ErrPersistence, err)
		}
	}

	userPrompt, err := BuildQuizUserPrompt(req, wrongItems)
	if err != nil {
		return err
	}

	raw, err := o.client.Generate(ctx, prompt.SystemPrompt, userPrompt)
	if err != nil {
		return err
	}

	sanitized := Sanitize(raw, prompt.ExpectArray)

	drafts, err := ValidateQuizBatch(sanitized, QuizContract{
		ItemCount:  prompt.ItemCount,
		ContextID:  req.ContextID,
		Mode:       req.Mode,
		Difficulty: req.Difficulty,
	})
	if err != nil {
		o.log.Warn("generated batch rejected", "use_case", req.UseCase, "requester_id", req.RequesterID, "context_id", req.ContextID, "error", err)
		return err
	}

	// Late-stage dedup is regeneration-only: fresh generation for a category
	// has no prior wrong set to collide with, and rejecting it for overlap
	// would throw away an otherwise valid batch.
	if req.UseCase == domain.UseCaseQuizFromWrong {
		drafts, err = o.dropDuplicates(ctx, req.ContextID, drafts)
		if err != nil {
			return err
		}
		if len(drafts) == 0 {
			o.log.Info("entire batch deduplicated away, nothing to persist", "requester_id", req.RequesterID, "context_id", req.ContextID)
			return nil
		}
	}

	items := make([]*domain.QuizItem, 0, len(drafts))
	for _, d := range drafts {
		opts, mErr := json.Marshal(d.Options)
		if mErr != nil {
			return mErr
		}
		items = append(items, &domain.QuizItem{
			ID:            uuid.New(),
			ContextID:     req.ContextID,
			PromptMD:      d.Question,
			Options:       datatypes.JSON(opts),
			CorrectAnswer: d.Answer,
			ExplanationMD: d.Explanation,
			Difficulty:    d.Difficulty,
		})
	}

	if _, err := o.items.Create(ctx, nil, items); err != nil {
		return fmt.Errorf("%w: persist quiz items: %v", ErrPersistence, err)
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	// The latest-batch pointer is a convenience cache; items are already
	// durable, so a failed overwrite is logged rather than retried (a retry
	// would be suppressed by the coarse dedup lock anyway).
	if err := o.latest.SetLatest(ctx, req.RequesterID, req.ContextID, ids); err != nil {
		o.log.Warn("failed to record latest batch", "requester_id", req.RequesterID, "context_id", req.ContextID, "error", err)
	}

	if o.notify != nil {
		o.notify.BatchReady(req.RequesterID, req.ContextID, req.UseCase, ids)
	}

	o.log.Info("generation batch persisted", "use_case", req.UseCase, "requester_id", req.RequesterID, "context_id", req.ContextID, "count", len(items))
	return nil
}

func (o *Orchestrator) runAnalysis(ctx context.Context, req domain.GenerationRequest, kind string) error {
	prompt, err := o.catalog.Get(kind)
	if err != nil {
		return err
	}

	wrongItems, err := o.loadWrongItems(ctx, req.WrongItemIDs)
	if err != nil {
		return fmt.Errorf("%w: load wrong items: %v", ErrPersistence, err)
	}

	var userPrompt string
	if kind == domain.UseCaseFocusGuide {
		userPrompt, err = BuildAnalysisUserPrompt(req, wrongItems)
	} else {
		userPrompt, err = BuildQuizUserPrompt(req, wrongItems)
	}
	if err != nil {
		return err
	}

	raw, err := o.client.Generate(ctx, prompt.SystemPrompt, userPrompt)
	if err != nil {
		return err
	}

	sanitized := Sanitize(raw, prompt.ExpectArray)

	var payload json.RawMessage
	if kind == domain.UseCaseFocusGuide {
		payload, err = ValidateAnalysis(sanitized)
	} else {
		payload, err = ValidateRoadmap(sanitized)
	}
	if err != nil {
		o.log.Warn("analysis output rejected", "use_case", kind, "requester_id", req.RequesterID, "error", err)
		return err
	}

	result := &domain.AnalysisResult{
		ID:          uuid.New(),
		Kind:        kind,
		RequesterID: req.RequesterID,
		ContextID:   req.ContextID,
		Payload:     datatypes.JSON(payload),
	}

	var session *domain.ReviewSession
	if req.SessionKey != "" {
		session, err = o.sessions.GetBySessionKey(ctx, nil, req.SessionKey)
		if err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
			return fmt.Errorf("%w: load session: %v", ErrPersistence, err)
		}
		if session != nil {
			result.SessionID = &session.ID
		}
	}

	if _, err := o.analyses.Create(ctx, nil, result); err != nil {
		return fmt.Errorf("%w: persist analysis: %v", ErrPersistence, err)
	}

	if session != nil {
		if err := o.sessions.AttachAnalysisResult(ctx, nil, session.ID, result.ID); err != nil {
			return fmt.Errorf("%w: attach analysis to session: %v", ErrPersistence, err)
		}
	}

	o.log.Info("analysis persisted", "use_case", kind, "requester_id", req.RequesterID, "context_id", req.ContextID, "analysis_id", result.ID)
	return nil
}

func (o *Orchestrator) dropDuplicates(ctx context.Context, contextID int64, drafts []QuizDraft) ([]QuizDraft, error) {
	questions := make([]string, 0, len(drafts))
	for _, d := range drafts {
		questions = append(questions, d.Question)
	}

	existing, err := o.items.ExistingPrompts(ctx, nil, contextID, questions)
	if err != nil {
		return nil, fmt.Errorf("%w: check existing prompts: %v", ErrPersistence, err)
	}

	kept, dropped := DedupDrafts(drafts, existing)
	if dropped > 0 {
		o.log.Info("dropped duplicate items from batch", "context_id", contextID, "dropped", dropped, "kept", len(kept))
	}
	return kept, nil
}

func (o *Orchestrator) loadWrongItems(ctx context.Context, ids []uuid.UUID) ([]WrongItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := o.items.GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, err
	}

	out := make([]WrongItem, 0, len(rows))
	for _, row := range rows {
		var opts []string
		if len(row.Options) > 0 {
			if err := json.Unmarshal(row.Options, &opts); err != nil {
				o.log.Warn("skipping wrong item with corrupt options", "item_id", row.ID, "error", err)
				continue
			}
		}
		out = append(out, WrongItem{
			Question:    row.PromptMD,
			Options:     opts,
			Answer:      row.CorrectAnswer,
			Explanation: row.ExplanationMD,
		})
	}
	return out, nil
}
