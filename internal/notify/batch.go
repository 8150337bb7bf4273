package notify

import (
	"github.com/google/uuid"

	"github.com/oakmind/oakmind-backend/internal/pkg/logger"
	"github.com/oakmind/oakmind-backend/internal/sse"
)

// BatchNotifier tells a requester their generated batch is ready to fetch.
// Delivery is best effort; the batch is already durable when this fires.
type BatchNotifier interface {
	BatchReady(requesterID uuid.UUID, contextID int64, useCase string, itemIDs []uuid.UUID)
}

type sseBatchNotifier struct {
	log *logger.Logger
	hub sse.Registry
}

func NewSSEBatchNotifier(log *logger.Logger, hub sse.Registry) BatchNotifier {
	return &sseBatchNotifier{
		log: log.With("service", "BatchNotifier"),
		hub: hub,
	}
}

func (n *sseBatchNotifier) BatchReady(requesterID uuid.UUID, contextID int64, useCase string, itemIDs []uuid.UUID) {
	ids := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		ids = append(ids, id.String())
	}

	n.log.Info("generation batch ready",
		"requester_id", requesterID,
		"context_id", contextID,
		"use_case", useCase,
		"count", len(ids),
	)

	// Clients subscribe to their own requester id channel on connect.
	n.hub.Broadcast(sse.Message{
		Channel: requesterID.String(),
		Event:   sse.EventBatchReady,
		Data: map[string]any{
			"context_id": contextID,
			"use_case":   useCase,
			"item_ids":   ids,
		},
	})
}
