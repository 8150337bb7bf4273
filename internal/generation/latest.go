package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/oakmind/oakmind-backend/internal/pkg/logger"
)

// LatestStore keeps the most recent successfully generated batch per
// requester+context for quick lookup. Overwrite semantics: only the newest
// batch is retained.
type LatestStore interface {
	SetLatest(ctx context.Context, requesterID uuid.UUID, contextID int64, itemIDs []uuid.UUID) error
	GetLatest(ctx context.Context, requesterID uuid.UUID, contextID int64) ([]uuid.UUID, error)
}

type redisLatestStore struct {
	rdb *goredis.Client
	log *logger.Logger
}

func NewRedisLatestStore(rdb *goredis.Client, baseLog *logger.Logger) LatestStore {
	return &redisLatestStore{
		rdb: rdb,
		log: baseLog.With("service", "LatestBatchStore"),
	}
}

func latestKey(requesterID uuid.UUID, contextID int64) string {
	return fmt.Sprintf("quiz:latest:%s:%d", requesterID, contextID)
}

func (s *redisLatestStore) SetLatest(ctx context.Context, requesterID uuid.UUID, contextID int64, itemIDs []uuid.UUID) error {
	raw, err := json.Marshal(itemIDs)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, latestKey(requesterID, contextID), raw, 0).Err()
}

// GetLatest tolerates a corrupt stored value by returning an empty result;
// the lookup is a convenience cache, not a source of truth.
func (s *redisLatestStore) GetLatest(ctx context.Context, requesterID uuid.UUID, contextID int64) ([]uuid.UUID, error) {
	raw, err := s.rdb.Get(ctx, latestKey(requesterID, contextID)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		s.log.Warn("corrupt latest-batch value, returning empty", "requester_id", requesterID, "context_id", contextID, "error", err)
		return nil, nil
	}
	return ids, nil
}
