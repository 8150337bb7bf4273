package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ReviewSession bundles the items a requester answered so a review/analysis
// round can be generated from them. Created once by the trigger flow; the only
// later mutation is attaching an AnalysisResult id.
type ReviewSession struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionKey       string         `gorm:"column:session_key;not null;uniqueIndex" json:"session_key"`
	RequesterID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"requester_id"`
	ContextID        int64          `gorm:"column:context_id;not null;index" json:"context_id"`
	ItemIDs          datatypes.JSON `gorm:"column:item_ids;type:jsonb" json:"item_ids"`
	AnalysisResultID *uuid.UUID     `gorm:"type:uuid" json:"analysis_result_id,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (ReviewSession) TableName() string {
	return "review_session"
}

func (s *ReviewSession) SetItemIDs(ids []uuid.UUID) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	s.ItemIDs = datatypes.JSON(raw)
	return nil
}

func (s *ReviewSession) GetItemIDs() ([]uuid.UUID, error) {
	if len(s.ItemIDs) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(s.ItemIDs, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
