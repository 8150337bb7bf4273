package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	temporalsdkclient "go.temporal.io/sdk/client"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/oakmind/oakmind-backend/internal/pkg/envutil"
	"github.com/oakmind/oakmind-backend/internal/pkg/httpx"
	"github.com/oakmind/oakmind-backend/internal/pkg/logger"
)

// NewTemporalClient dials the cluster with bounded retry so the service
// survives a broker that comes up after it does. Returns (nil, nil) when
// TEMPORAL_ADDRESS is unset, which disables the async pipeline entirely.
func NewTemporalClient(log *logger.Logger) (temporalsdkclient.Client, error) {
	cfg := LoadConfig()
	if cfg.Address == "" {
		log.Warn("TEMPORAL_ADDRESS not set; request broker disabled")
		return nil, nil
	}

	opts := temporalsdkclient.Options{
		HostPort:  cfg.Address,
		Namespace: cfg.Namespace,
		Logger:    log,
	}

	dialTimeout := time.Duration(envutil.GetEnvAsInt("TEMPORAL_DIAL_TIMEOUT_SECONDS", 5, log)) * time.Second
	maxWait := time.Duration(envutil.GetEnvAsInt("TEMPORAL_DIAL_MAX_WAIT_SECONDS", 60, log)) * time.Second
	backoff := time.Duration(envutil.GetEnvAsInt("TEMPORAL_DIAL_BACKOFF_MS", 250, log)) * time.Millisecond

	deadline := time.Now().Add(maxWait)
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		c, err := temporalsdkclient.DialContext(ctx, opts)
		cancel()
		if err == nil {
			if attempt > 1 {
				log.Info("connected to Temporal", "address", cfg.Address, "namespace", cfg.Namespace, "attempts", attempt)
			}
			if envutil.GetEnvAsBool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false, log) {
				if err := ensureNamespace(context.Background(), cfg, log); err != nil {
					c.Close()
					return nil, err
				}
			}
			return c, nil
		}

		if maxWait <= 0 || time.Now().After(deadline) {
			return nil, fmt.Errorf("temporal dial failed (address=%s namespace=%s): %w", cfg.Address, cfg.Namespace, err)
		}

		log.Warn("Temporal not reachable; retrying", "address", cfg.Address, "attempt", attempt, "error", err)
		time.Sleep(httpx.JitterSleep(backoffFor(backoff, attempt)))
	}
}

// ensureNamespace creates the configured namespace when it does not exist.
// Meant for local and self-hosted clusters; managed namespaces should be
// pre-provisioned with auto-register off.
func ensureNamespace(ctx context.Context, cfg Config, log *logger.Logger) error {
	if cfg.Namespace == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// The NamespaceClient carries no namespace header, so it can create the
	// namespace before it exists.
	nsClient, err := temporalsdkclient.NewNamespaceClient(temporalsdkclient.Options{
		HostPort: cfg.Address,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("temporal namespace ensure: init client: %w", err)
	}
	defer nsClient.Close()

	retentionDays := envutil.GetEnvAsInt("TEMPORAL_NAMESPACE_RETENTION_DAYS", 7, log)
	if retentionDays < 1 {
		retentionDays = 7
	}

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("temporal namespace ensure: timed out (namespace=%s): %w", cfg.Namespace, ctx.Err())
		}

		_, err := nsClient.Describe(ctx, cfg.Namespace)
		if err == nil {
			return nil
		}

		var nfe *serviceerror.NamespaceNotFound
		if errors.As(err, &nfe) {
			regErr := nsClient.Register(ctx, &workflowservice.RegisterNamespaceRequest{
				Namespace:                        cfg.Namespace,
				Description:                      "oakmind auto-registered namespace",
				WorkflowExecutionRetentionPeriod: durationpb.New(time.Duration(retentionDays) * 24 * time.Hour),
			})
			if regErr == nil {
				log.Info("registered Temporal namespace", "namespace", cfg.Namespace, "retention_days", retentionDays)
				return nil
			}
			var already *serviceerror.NamespaceAlreadyExists
			if errors.As(regErr, &already) {
				return nil
			}
			if !retryableRPC(regErr) {
				return fmt.Errorf("temporal namespace ensure: register: %w", regErr)
			}
			err = regErr
		} else if !retryableRPC(err) {
			return fmt.Errorf("temporal namespace ensure: describe: %w", err)
		}

		log.Warn("Temporal namespace ensure retrying", "namespace", cfg.Namespace, "attempt", attempt, "error", err)
		time.Sleep(httpx.JitterSleep(backoffFor(250*time.Millisecond, attempt)))
	}
}

func retryableRPC(err error) bool {
	if err == nil {
		return false
	}
	s, ok := status.FromError(err)
	if !ok {
		return errors.Is(err, context.DeadlineExceeded)
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}

func backoffFor(base time.Duration, attempt int) time.Duration {
	const max = 5 * time.Second
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if sleep >= max {
			return max
		}
	}
	return sleep
}
