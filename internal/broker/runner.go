package broker

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/oakmind/oakmind-backend/internal/pkg/envutil"
	"github.com/oakmind/oakmind-backend/internal/pkg/httpx"
	"github.com/oakmind/oakmind-backend/internal/pkg/logger"
)

// Runner polls every topic's task queue with one worker each. Activity
// concurrency is bounded per worker so a burst of requests cannot stampede
// the external generator.
type Runner struct {
	log  *logger.Logger
	tc   temporalsdkclient.Client
	acts *Activities
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, acts *Activities) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if acts == nil {
		return nil, fmt.Errorf("broker worker missing activities")
	}
	return &Runner{
		log:  log.With("component", "BrokerWorker"),
		tc:   tc,
		acts: acts,
	}, nil
}

func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		return fmt.Errorf("broker worker not initialized")
	}

	concurrency := envutil.GetEnvAsInt("WORKER_CONCURRENCY", 3, r.log)
	if concurrency < 1 {
		concurrency = 1
	}

	maxWait := time.Duration(envutil.GetEnvAsInt("TEMPORAL_WORKER_START_MAX_WAIT_SECONDS", 60, r.log)) * time.Second
	deadline := time.Now().Add(maxWait)

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		workers, startErr := r.startWorkers(concurrency)
		if startErr == nil {
			go func() {
				<-ctx.Done()
				for _, w := range workers {
					w.Stop()
				}
			}()
			r.log.Info("broker workers started", "topics", Topics(), "concurrency", concurrency, "attempts", attempt)
			return nil
		}

		if maxWait <= 0 || time.Now().After(deadline) {
			return startErr
		}

		r.log.Warn("broker workers failed to start; retrying", "attempt", attempt, "error", startErr)
		time.Sleep(httpx.JitterSleep(backoffFor(250*time.Millisecond, attempt)))
	}
}

// startWorkers brings up one worker per topic, or none: a partial fleet would
// silently starve the topics that failed.
func (r *Runner) startWorkers(concurrency int) ([]worker.Worker, error) {
	workers := make([]worker.Worker, 0, len(Topics()))
	for _, topic := range Topics() {
		w := worker.New(r.tc, topic, worker.Options{
			MaxConcurrentActivityExecutionSize:     concurrency,
			MaxConcurrentWorkflowTaskExecutionSize: concurrency,
		})

		w.RegisterWorkflowWithOptions(GenerationWorkflow, workflow.RegisterOptions{Name: WorkflowGenerationRequest})
		w.RegisterActivityWithOptions(r.acts.ProcessGenerationRequest, activity.RegisterOptions{Name: ActivityProcess})
		w.RegisterActivityWithOptions(r.acts.DeadLetter, activity.RegisterOptions{Name: ActivityDeadLetter})

		if err := w.Start(); err != nil {
			for _, started := range workers {
				started.Stop()
			}
			w.Stop()
			return nil, fmt.Errorf("start worker for %s: %w", topic, err)
		}
		workers = append(workers, w)
	}
	return workers, nil
}
