package broker

import (
	"context"
	"encoding/json"
	"fmt"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/oakmind/oakmind-backend/internal/domain"
	"github.com/oakmind/oakmind-backend/internal/pkg/logger"
)

// Publisher hands a generation request to the broker and returns once the
// request is durably accepted. Delivery, retry and dead-lettering happen
// asynchronously on the worker side.
type Publisher interface {
	Publish(ctx context.Context, topic string, req domain.GenerationRequest) error
}

type temporalPublisher struct {
	log *logger.Logger
	tc  temporalsdkclient.Client
}

func NewPublisher(log *logger.Logger, tc temporalsdkclient.Client) (Publisher, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	return &temporalPublisher{
		log: log.With("service", "RequestBroker"),
		tc:  tc,
	}, nil
}

func (p *temporalPublisher) Publish(ctx context.Context, topic string, req domain.GenerationRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode generation request: %w", err)
	}

	// The workflow ID carries the requester so deliveries for one requester
	// serialize, and the dedupe key so an identical in-flight request is
	// absorbed instead of restarted.
	key := req.DedupeKey
	if key == "" {
		key = fmt.Sprintf("%s:%d", req.UseCase, req.ContextID)
	}
	workflowID := fmt.Sprintf("%s:%s:%s", topic, req.RequesterID, key)

	run, err := p.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: topic,
	}, WorkflowGenerationRequest, Envelope{Topic: topic, Payload: payload})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.log.Info("generation request published",
		"topic", topic,
		"use_case", req.UseCase,
		"requester_id", req.RequesterID,
		"context_id", req.ContextID,
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
	)
	return nil
}
