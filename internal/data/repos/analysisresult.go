package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oakmind/oakmind-backend/internal/domain"
	pkgerrors "github.com/oakmind/oakmind-backend/internal/pkg/errors"
	"github.com/oakmind/oakmind-backend/internal/pkg/logger"
)

type AnalysisResultRepo interface {
	Create(ctx context.Context, tx *gorm.DB, result *domain.AnalysisResult) (*domain.AnalysisResult, error)
	GetByRequester(ctx context.Context, tx *gorm.DB, requesterID uuid.UUID, contextID int64) ([]*domain.AnalysisResult, error)
}

type analysisResultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalysisResultRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisResultRepo {
	return &analysisResultRepo{db: db, log: baseLog.With("repo", "AnalysisResultRepo")}
}

func (r *analysisResultRepo) Create(ctx context.Context, tx *gorm.DB, result *domain.AnalysisResult) (*domain.AnalysisResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if result == nil {
		return nil, pkgerrors.ErrInvalidArgument
	}

	if err := transaction.WithContext(ctx).Create(result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (r *analysisResultRepo) GetByRequester(ctx context.Context, tx *gorm.DB, requesterID uuid.UUID, contextID int64) ([]*domain.AnalysisResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.AnalysisResult
	if err := transaction.WithContext(ctx).
		Where("requester_id = ? AND context_id = ?", requesterID, contextID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
