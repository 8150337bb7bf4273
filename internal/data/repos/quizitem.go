package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oakmind/oakmind-backend/internal/domain"
	"github.com/oakmind/oakmind-backend/internal/pkg/logger"
)

type QuizItemRepo interface {
	Create(ctx context.Context, tx *gorm.DB, items []*domain.QuizItem) ([]*domain.QuizItem, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, itemIDs []uuid.UUID) ([]*domain.QuizItem, error)
	GetByContextID(ctx context.Context, tx *gorm.DB, contextID int64) ([]*domain.QuizItem, error)
	ExistingPrompts(ctx context.Context, tx *gorm.DB, contextID int64, prompts []string) (map[string]bool, error)
}

type quizItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuizItemRepo(db *gorm.DB, baseLog *logger.Logger) QuizItemRepo {
	return &quizItemRepo{db: db, log: baseLog.With("repo", "QuizItemRepo")}
}

func (r *quizItemRepo) Create(ctx context.Context, tx *gorm.DB, items []*domain.QuizItem) ([]*domain.QuizItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(items) == 0 {
		return []*domain.QuizItem{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *quizItemRepo) GetByIDs(ctx context.Context, tx *gorm.DB, itemIDs []uuid.UUID) ([]*domain.QuizItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.QuizItem
	if len(itemIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", itemIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *quizItemRepo) GetByContextID(ctx context.Context, tx *gorm.DB, contextID int64) ([]*domain.QuizItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.QuizItem
	if err := transaction.WithContext(ctx).
		Where("context_id = ?", contextID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ExistingPrompts reports which of the given prompt texts already exist for the
// context, by exact string match. Used by the late-stage dedup pass.
func (r *quizItemRepo) ExistingPrompts(ctx context.Context, tx *gorm.DB, contextID int64, prompts []string) (map[string]bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	out := make(map[string]bool, len(prompts))
	if len(prompts) == 0 {
		return out, nil
	}

	var found []string
	if err := transaction.WithContext(ctx).
		Model(&domain.QuizItem{}).
		Where("context_id = ? AND prompt_md IN ?", contextID, prompts).
		Pluck("prompt_md", &found).Error; err != nil {
		return nil, err
	}
	for _, p := range found {
		out[p] = true
	}
	return out, nil
}
