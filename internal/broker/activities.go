package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/oakmind/oakmind-backend/internal/dedup"
	"github.com/oakmind/oakmind-backend/internal/domain"
	"github.com/oakmind/oakmind-backend/internal/eligibility"
	"github.com/oakmind/oakmind-backend/internal/generation"
	"github.com/oakmind/oakmind-backend/internal/notify"
	pkgerrors "github.com/oakmind/oakmind-backend/internal/pkg/errors"
	"github.com/oakmind/oakmind-backend/internal/pkg/logger"
)

// Processor runs one generation attempt. *generation.Orchestrator satisfies it.
type Processor interface {
	Run(ctx context.Context, req domain.GenerationRequest) error
}

// DeadLetterStore is the append surface for exhausted requests.
// *goredis.Client satisfies it via RPUSH.
type DeadLetterStore interface {
	RPush(ctx context.Context, key string, values ...interface{}) *goredis.IntCmd
}

type Activities struct {
	Log         *logger.Logger
	Eligibility eligibility.Gate
	Gate        *dedup.Gate
	Processor   Processor
	DLT         DeadLetterStore
	Notify      notify.FailureNotifier
}

const payloadPreviewLimit = 256

// ProcessGenerationRequest is the retried unit of work: eligibility, coarse
// dedup, then one orchestrator attempt. Errors come back typed so the retry
// policy can tell a denied requester from a flaky generator.
func (a *Activities) ProcessGenerationRequest(ctx context.Context, env Envelope) error {
	if a == nil || a.Eligibility == nil || a.Gate == nil || a.Processor == nil {
		return fmt.Errorf("broker: activity not configured")
	}

	var req domain.GenerationRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return temporal.NewNonRetryableApplicationError("undecodable generation request", ErrTypeInvalidRequest, err)
	}

	info := activity.GetInfo(ctx)
	attempt := info.Attempt
	a.Log.Info("processing generation request",
		"topic", env.Topic,
		"use_case", req.UseCase,
		"requester_id", req.RequesterID,
		"context_id", req.ContextID,
		"attempt", attempt,
	)

	allowed, err := a.Eligibility.IsAllowed(ctx, req.RequesterID)
	if err != nil {
		return temporal.NewApplicationError(err.Error(), ErrTypeGenerationUnavailable)
	}
	if !allowed {
		return temporal.NewNonRetryableApplicationError("requester not entitled to generation", ErrTypeEligibilityDenied, nil)
	}

	// The coarse lock covers the whole attempt, with the workflow run id as
	// owner. Failed attempts release it, and owner re-entry covers the case
	// where that release is lost to a store blip, so a denial always means a
	// different run of this request already completed.
	key := dedup.CoarseKey(req.UseCase, req.RequesterID, req.ContextID, req.DedupeKey)
	acquired, err := a.Gate.TryAcquireOwned(ctx, key, info.WorkflowExecution.RunID, dedup.CoarseTTL)
	if err != nil {
		return temporal.NewApplicationError(err.Error(), ErrTypeGenerationUnavailable)
	}
	if !acquired {
		a.Log.Info("duplicate generation request suppressed", "topic", env.Topic, "requester_id", req.RequesterID, "context_id", req.ContextID)
		return nil
	}

	if err := a.Processor.Run(ctx, req); err != nil {
		a.Gate.Release(ctx, key)
		return classify(err)
	}
	return nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidRequest, err)
	case errors.Is(err, generation.ErrContractViolation):
		return temporal.NewApplicationError(err.Error(), ErrTypeContractViolation)
	case errors.Is(err, generation.ErrPersistence):
		return temporal.NewApplicationError(err.Error(), ErrTypePersistenceFailure)
	case errors.Is(err, generation.ErrGenerationUnavailable):
		return temporal.NewApplicationError(err.Error(), ErrTypeGenerationUnavailable)
	default:
		return err
	}
}

// DeadLetter appends the exhausted request to {topic}.dlt, payload unchanged,
// then raises the operator alert.
func (a *Activities) DeadLetter(ctx context.Context, env Envelope) error {
	if a == nil || a.DLT == nil {
		return fmt.Errorf("broker: dead-letter store not configured")
	}

	channel := DeadLetterChannel(env.Topic)
	if err := a.DLT.RPush(ctx, channel, []byte(env.Payload)).Err(); err != nil {
		return fmt.Errorf("dead-letter append to %s: %w", channel, err)
	}

	info := activity.GetInfo(ctx)
	a.Log.Error("generation request exhausted retries",
		"topic", env.Topic,
		"channel", channel,
		"workflow_id", info.WorkflowExecution.ID,
		"run_id", info.WorkflowExecution.RunID,
	)
	if a.Notify != nil {
		a.Notify.GenerationFailed(env.Topic, info.WorkflowExecution.ID, info.WorkflowExecution.RunID, time.Now(), preview(env.Payload))
	}
	return nil
}

func preview(payload []byte) string {
	if len(payload) <= payloadPreviewLimit {
		return string(payload)
	}
	return string(payload[:payloadPreviewLimit]) + "..."
}
