package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AnalysisResult is one structured weakness-analysis payload produced by the
// focus-guide use case. Append-only: one row per invocation.
type AnalysisResult struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Kind        string         `gorm:"column:kind;not null;index" json:"kind"`
	RequesterID uuid.UUID      `gorm:"type:uuid;not null;index" json:"requester_id"`
	ContextID   int64          `gorm:"column:context_id;not null;index" json:"context_id"`
	SessionID   *uuid.UUID     `gorm:"type:uuid;index" json:"session_id,omitempty"`
	Payload     datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (AnalysisResult) TableName() string {
	return "analysis_result"
}
