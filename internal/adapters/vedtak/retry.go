package vedtak

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/config"
	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/DanielPopoola/etterlatte-settlement/internal/core/ports"
)

// RetryClient retries transient vedtak failures with exponential backoff.
type RetryClient struct {
	inner      ports.DecisionSource
	baseDelay  time.Duration
	maxRetries int
}

// NewRetryClient reads BaseDelay as milliseconds.
func NewRetryClient(inner ports.DecisionSource, cfg config.RetryConfig) *RetryClient {
	maxRetries := int(cfg.MaxRetries)
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &RetryClient{
		inner:      inner,
		baseDelay:  time.Duration(cfg.BaseDelay) * time.Millisecond,
		maxRetries: maxRetries,
	}
}

func (r *RetryClient) FetchSchedule(ctx context.Context, decisionID int64) ([]domain.ScheduleEntry, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		schedule, err := r.inner.FetchSchedule(ctx, decisionID)
		if err == nil {
			return schedule, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}

		if attempt < r.maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.backoff(attempt)):
			}
		}
	}

	return nil, fmt.Errorf("maximum retries exceeded: %w", lastErr)
}

func isRetryable(err error) bool {
	var vedtakErr *VedtakError
	if errors.As(err, &vedtakErr) {
		return vedtakErr.StatusCode >= 500 || vedtakErr.StatusCode == 429
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// backoff doubles the base delay per attempt and adds up to one base delay of jitter.
func (r *RetryClient) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)
	if r.baseDelay <= 0 {
		return base
	}
	return base + time.Duration(rand.Int63n(int64(r.baseDelay)))
}
