package notify

import (
	"time"

	"github.com/oakmind/oakmind-backend/internal/pkg/logger"
	"github.com/oakmind/oakmind-backend/internal/sse"
)

// FailureNotifier raises an operator-facing alert when a generation request
// exhausts its retries and lands on the dead-letter channel. The alert
// carries enough context to reproduce: topic, workflow identity, timestamp
// and a truncated payload preview.
type FailureNotifier interface {
	GenerationFailed(topic, workflowID, runID string, at time.Time, payloadPreview string)
}

type sseFailureNotifier struct {
	log *logger.Logger
	hub sse.Registry
}

func NewSSEFailureNotifier(log *logger.Logger, hub sse.Registry) FailureNotifier {
	return &sseFailureNotifier{
		log: log.With("service", "FailureNotifier"),
		hub: hub,
	}
}

func (n *sseFailureNotifier) GenerationFailed(topic, workflowID, runID string, at time.Time, payloadPreview string) {
	n.log.Error("generation request dead-lettered",
		"topic", topic,
		"workflow_id", workflowID,
		"run_id", runID,
		"at", at.UTC().Format(time.RFC3339),
		"payload_preview", payloadPreview,
	)

	n.hub.Broadcast(sse.Message{
		Channel: sse.OpsChannel,
		Event:   sse.EventGenerationFailed,
		Data: map[string]any{
			"topic":           topic,
			"workflow_id":     workflowID,
			"run_id":          runID,
			"at":              at.UTC().Format(time.RFC3339),
			"payload_preview": payloadPreview,
		},
	})
}
