// Package httpx holds small helpers for talking to flaky HTTP upstreams:
// retry classification, Retry-After handling and jittered backoff.
package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPStatusCoder is implemented by client errors that carry the upstream
// status code.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// IsRetryableHTTPStatus reports whether a status is worth another attempt.
// Client errors other than timeout and throttling are not.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return code >= 500 && code <= 599
}

// IsRetryableError classifies transport-level failures. Cancellation is not
// retryable; the caller asked to stop.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableHTTPStatus(sc.HTTPStatusCode())
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// RetryAfterDuration resolves the wait before the next attempt, honoring an
// upstream Retry-After header (seconds form only), clamped to max.
func RetryAfterDuration(resp *http.Response, fallback, max time.Duration) time.Duration {
	wait := fallback
	if resp != nil {
		if secs := parseRetryAfterSeconds(resp.Header.Get("Retry-After")); secs > 0 {
			wait = time.Duration(secs) * time.Second
		}
	}
	if max > 0 && wait > max {
		return max
	}
	return wait
}

func parseRetryAfterSeconds(header string) int {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return 0
	}
	return secs
}

// JitterSleep spreads an interval +/- 20% so synchronized retries fan out.
func JitterSleep(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	span := base / 5
	if span <= 0 {
		return base
	}
	return base - span + time.Duration(rand.Int63n(int64(2*span)+1))
}
