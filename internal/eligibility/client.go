package eligibility

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oakmind/oakmind-backend/internal/pkg/envutil"
	"github.com/oakmind/oakmind-backend/internal/pkg/httpx"
	"github.com/oakmind/oakmind-backend/internal/pkg/logger"
)

// ErrEligibilityCheck marks a failed entitlement lookup. The gate never maps
// "unknown" to false; callers decide whether to retry or drop.
var ErrEligibilityCheck = errors.New("eligibility check failed")

// A short local retry covers connection blips without burning one of the
// broker's slower activity attempts.
const (
	eligibilityMaxAttempts  = 3
	eligibilityRetryBackoff = 200 * time.Millisecond
	eligibilityRetryMax     = 2 * time.Second
)

type Gate interface {
	IsAllowed(ctx context.Context, requesterID uuid.UUID) (bool, error)
}

// envelope is the entitlement service's wrapped response. A missing data
// field is a hard failure, not a denial.
type envelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    *bool  `json:"data"`
}

type httpGate struct {
	log        *logger.Logger
	httpClient *http.Client
	baseURL    string
	authHeader string
}

func NewHTTPGate(log *logger.Logger) (Gate, error) {
	baseURL := strings.TrimRight(envutil.GetEnv("ENTITLEMENT_BASE_URL", "", log), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing ENTITLEMENT_BASE_URL")
	}
	timeoutSec := envutil.GetEnvAsInt("ENTITLEMENT_TIMEOUT_SECONDS", 5, log)

	return &httpGate{
		log:        log.With("service", "EligibilityGate"),
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		baseURL:    baseURL,
		authHeader: envutil.GetEnv("ENTITLEMENT_AUTH_HEADER", "X-Member-Id", nil),
	}, nil
}

func (g *httpGate) IsAllowed(ctx context.Context, requesterID uuid.UUID) (bool, error) {
	var lastErr error
	for attempt := 1; attempt <= eligibilityMaxAttempts; attempt++ {
		allowed, wait, retryable, err := g.check(ctx, requesterID)
		if err == nil {
			return allowed, nil
		}
		lastErr = err
		if !retryable || attempt == eligibilityMaxAttempts {
			break
		}

		g.log.Warn("entitlement lookup failed; retrying", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return false, fmt.Errorf("%w: %v", ErrEligibilityCheck, ctx.Err())
		case <-time.After(httpx.JitterSleep(wait)):
		}
	}
	return false, lastErr
}

func (g *httpGate) check(ctx context.Context, requesterID uuid.UUID) (allowed bool, wait time.Duration, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/v1/members/me/entitlements/quiz-generation", nil)
	if err != nil {
		return false, 0, false, fmt.Errorf("%w: %v", ErrEligibilityCheck, err)
	}
	req.Header.Set(g.authHeader, requesterID.String())
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return false, eligibilityRetryBackoff, httpx.IsRetryableError(err), fmt.Errorf("%w: %v", ErrEligibilityCheck, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return false, eligibilityRetryBackoff, true, fmt.Errorf("%w: read body: %v", ErrEligibilityCheck, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		wait := httpx.RetryAfterDuration(resp, eligibilityRetryBackoff, eligibilityRetryMax)
		return false, wait, httpx.IsRetryableHTTPStatus(resp.StatusCode), fmt.Errorf("%w: http %d", ErrEligibilityCheck, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false, 0, false, fmt.Errorf("%w: decode envelope: %v", ErrEligibilityCheck, err)
	}
	if env.Data == nil {
		return false, 0, false, fmt.Errorf("%w: envelope missing data (code=%s)", ErrEligibilityCheck, env.Code)
	}
	return *env.Data, 0, false, nil
}
