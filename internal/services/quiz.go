package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oakmind/oakmind-backend/internal/broker"
	"github.com/oakmind/oakmind-backend/internal/data/repos"
	"github.com/oakmind/oakmind-backend/internal/dedup"
	"github.com/oakmind/oakmind-backend/internal/domain"
	"github.com/oakmind/oakmind-backend/internal/generation"
	pkgerrors "github.com/oakmind/oakmind-backend/internal/pkg/errors"
	"github.com/oakmind/oakmind-backend/internal/pkg/logger"
)

// ReviewTrigger is the inbound "answered quiz" event: the requester finished
// a set of items and wants regenerated practice plus a weakness analysis.
type ReviewTrigger struct {
	RequesterID     uuid.UUID
	ContextID       int64
	SessionKey      string
	AnsweredItemIDs []uuid.UUID
	WrongItemIDs    []uuid.UUID
}

// GenerateTrigger is a direct request for a fresh batch in a context.
type GenerateTrigger struct {
	RequesterID    uuid.UUID
	ContextID      int64
	Mode           string
	Difficulty     string
	Topic          string
	IdempotencyKey string
}

// QuizService admits generation triggers. Admission is cheap and synchronous
// (validation, fine dedup, session bundling); everything slow happens behind
// the broker.
type QuizService interface {
	// TriggerReview returns false when the trigger was absorbed as a no-op:
	// an empty answered set, or a duplicate of a recently admitted review.
	TriggerReview(ctx context.Context, trig ReviewTrigger) (bool, error)
	TriggerGenerate(ctx context.Context, trig GenerateTrigger) error
	LatestBatch(ctx context.Context, requesterID uuid.UUID, contextID int64) ([]*domain.QuizItem, error)
}

type quizService struct {
	log       *logger.Logger
	sessions  repos.ReviewSessionRepo
	items     repos.QuizItemRepo
	gate      *dedup.Gate
	publisher broker.Publisher
	latest    generation.LatestStore
}

func NewQuizService(
	log *logger.Logger,
	sessions repos.ReviewSessionRepo,
	items repos.QuizItemRepo,
	gate *dedup.Gate,
	publisher broker.Publisher,
	latest generation.LatestStore,
) QuizService {
	return &quizService{
		log:       log.With("service", "QuizService"),
		sessions:  sessions,
		items:     items,
		gate:      gate,
		publisher: publisher,
		latest:    latest,
	}
}

func (s *quizService) TriggerReview(ctx context.Context, trig ReviewTrigger) (bool, error) {
	if trig.RequesterID == uuid.Nil {
		return false, fmt.Errorf("%w: missing requester id", pkgerrors.ErrInvalidArgument)
	}
	if len(trig.AnsweredItemIDs) == 0 {
		s.log.Debug("review trigger with no answered items, nothing to do", "requester_id", trig.RequesterID, "context_id", trig.ContextID)
		return false, nil
	}

	fingerprint := dedup.ReviewFingerprint(trig.RequesterID, trig.ContextID, trig.SessionKey, trig.AnsweredItemIDs)
	acquired, err := s.gate.TryAcquire(ctx, fingerprint, dedup.FineTTL)
	if err != nil || !acquired {
		// Fail-closed store errors and genuine duplicates land here alike;
		// both are absorbed so a double-submit never double-generates.
		s.log.Info("duplicate review trigger absorbed", "requester_id", trig.RequesterID, "context_id", trig.ContextID)
		return false, nil
	}

	session := &domain.ReviewSession{
		ID:          uuid.New(),
		SessionKey:  trig.SessionKey,
		RequesterID: trig.RequesterID,
		ContextID:   trig.ContextID,
	}
	if err := session.SetItemIDs(trig.AnsweredItemIDs); err != nil {
		return false, err
	}
	if _, err := s.sessions.Create(ctx, nil, session); err != nil {
		return false, fmt.Errorf("create review session: %w", err)
	}

	wrong := trig.WrongItemIDs
	if len(wrong) == 0 {
		wrong = trig.AnsweredItemIDs
	}
	now := time.Now().UTC()

	regen := domain.GenerationRequest{
		UseCase:      domain.UseCaseQuizFromWrong,
		RequesterID:  trig.RequesterID,
		ContextID:    trig.ContextID,
		Mode:         domain.ModeRandom,
		SessionKey:   trig.SessionKey,
		WrongItemIDs: wrong,
		DedupeKey:    fingerprint,
		RequestedAt:  now,
	}
	if err := s.publisher.Publish(ctx, broker.TopicReviewRequested, regen); err != nil {
		return false, fmt.Errorf("publish review generation: %w", err)
	}

	analysis := regen
	analysis.UseCase = domain.UseCaseFocusGuide
	analysis.DedupeKey = fingerprint + ":analysis"
	if err := s.publisher.Publish(ctx, broker.TopicReviewRequested, analysis); err != nil {
		// The regeneration request is already in flight; surface the partial
		// admission instead of pretending nothing happened.
		return true, fmt.Errorf("publish focus analysis: %w", err)
	}

	s.log.Info("review admitted",
		"requester_id", trig.RequesterID,
		"context_id", trig.ContextID,
		"session_id", session.ID,
		"answered", len(trig.AnsweredItemIDs),
		"wrong", len(wrong),
	)
	return true, nil
}

func (s *quizService) TriggerGenerate(ctx context.Context, trig GenerateTrigger) error {
	if trig.RequesterID == uuid.Nil {
		return fmt.Errorf("%w: missing requester id", pkgerrors.ErrInvalidArgument)
	}
	if !domain.ValidMode(trig.Mode) {
		return fmt.Errorf("%w: unknown mode %q", pkgerrors.ErrInvalidArgument, trig.Mode)
	}
	if trig.Mode == domain.ModeFixed && !domain.ValidDifficulty(trig.Difficulty) {
		return fmt.Errorf("%w: fixed mode requires a difficulty", pkgerrors.ErrInvalidArgument)
	}

	req := domain.GenerationRequest{
		UseCase:     domain.UseCaseQuizGenerate,
		RequesterID: trig.RequesterID,
		ContextID:   trig.ContextID,
		Mode:        trig.Mode,
		Difficulty:  trig.Difficulty,
		Topic:       trig.Topic,
		DedupeKey:   trig.IdempotencyKey,
		RequestedAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, broker.TopicGenerationRequested, req); err != nil {
		return fmt.Errorf("publish generation: %w", err)
	}
	return nil
}

func (s *quizService) LatestBatch(ctx context.Context, requesterID uuid.UUID, contextID int64) ([]*domain.QuizItem, error) {
	ids, err := s.latest.GetLatest(ctx, requesterID, contextID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.items.GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, err
	}

	// Preserve generation order; GetByIDs gives no ordering guarantee.
	byID := make(map[uuid.UUID]*domain.QuizItem, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	out := make([]*domain.QuizItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}
