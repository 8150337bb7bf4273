package broker

import (
	"encoding/json"
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Envelope is the workflow input. Payload is the marshaled GenerationRequest,
// carried as raw bytes so the dead-letter channel receives it byte-for-byte.
type Envelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// GenerationWorkflow drives one request through the processing activity with
// bounded exponential backoff. Exhausted retries (and unparseable payloads)
// go to the dead-letter channel with the original payload intact; an
// ineligible requester is dropped with a log entry and no dead letter.
func GenerationWorkflow(ctx workflow.Context, env Envelope) error {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    RetryInitialInterval,
			BackoffCoefficient: RetryBackoffCoefficient,
			MaximumAttempts:    RetryMaximumAttempts,
			NonRetryableErrorTypes: []string{
				ErrTypeEligibilityDenied,
				ErrTypeInvalidRequest,
			},
		},
	})

	err := workflow.ExecuteActivity(ctx, ActivityProcess, env).Get(ctx, nil)
	if err == nil {
		return nil
	}

	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() == ErrTypeEligibilityDenied {
		workflow.GetLogger(ctx).Warn("generation request dropped: requester not eligible", "topic", env.Topic)
		return nil
	}

	dltCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    RetryInitialInterval,
			BackoffCoefficient: RetryBackoffCoefficient,
			MaximumAttempts:    3,
		},
	})
	if dltErr := workflow.ExecuteActivity(dltCtx, ActivityDeadLetter, env).Get(dltCtx, nil); dltErr != nil {
		workflow.GetLogger(ctx).Error("failed to dead-letter generation request", "topic", env.Topic, "error", dltErr)
	}

	return err
}
