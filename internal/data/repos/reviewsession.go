package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oakmind/oakmind-backend/internal/domain"
	pkgerrors "github.com/oakmind/oakmind-backend/internal/pkg/errors"
	"github.com/oakmind/oakmind-backend/internal/pkg/logger"
)

type ReviewSessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, session *domain.ReviewSession) (*domain.ReviewSession, error)
	GetBySessionKey(ctx context.Context, tx *gorm.DB, sessionKey string) (*domain.ReviewSession, error)
	AttachAnalysisResult(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, analysisID uuid.UUID) error
}

type reviewSessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewSessionRepo(db *gorm.DB, baseLog *logger.Logger) ReviewSessionRepo {
	return &reviewSessionRepo{db: db, log: baseLog.With("repo", "ReviewSessionRepo")}
}

func (r *reviewSessionRepo) Create(ctx context.Context, tx *gorm.DB, session *domain.ReviewSession) (*domain.ReviewSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if session == nil {
		return nil, pkgerrors.ErrInvalidArgument
	}

	if err := transaction.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *reviewSessionRepo) GetBySessionKey(ctx context.Context, tx *gorm.DB, sessionKey string) (*domain.ReviewSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result domain.ReviewSession
	if err := transaction.WithContext(ctx).
		Where("session_key = ?", sessionKey).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

// AttachAnalysisResult is the only permitted mutation of a review session.
func (r *reviewSessionRepo) AttachAnalysisResult(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, analysisID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&domain.ReviewSession{}).
		Where("id = ?", sessionID).
		Update("analysis_result_id", analysisID).Error
}
