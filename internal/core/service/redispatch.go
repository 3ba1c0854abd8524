package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/DanielPopoola/etterlatte-settlement/internal/core/ports"
)

// Redispatcher sends requests that were stored but never confirmed by the
// broker. Such a request never reached the ledger, so sending it is its first
// dispatch, not a resend.
type Redispatcher struct {
	store      ports.PaymentOrderStore
	dispatcher *Dispatcher
	events     ports.StatusEventPublisher
	grace      time.Duration
	batchSize  int
	now        func() time.Time
	logger     *slog.Logger
}

func NewRedispatcher(
	store ports.PaymentOrderStore,
	dispatcher *Dispatcher,
	events ports.StatusEventPublisher,
	grace time.Duration,
	batchSize int,
	logger *slog.Logger,
) *Redispatcher {
	return &Redispatcher{
		store:      store,
		dispatcher: dispatcher,
		events:     events,
		grace:      grace,
		batchSize:  batchSize,
		now:        time.Now,
		logger:     logger,
	}
}

// Run dispatches up to one batch of requests that have been NEW for longer than
// the grace period and returns how many were sent. It stops at the first
// publish failure since the broker is then unlikely to confirm the rest.
func (r *Redispatcher) Run(ctx context.Context) (int, error) {
	cutoff := r.now().UTC().Add(-r.grace)
	pending, err := r.store.ListUndispatched(ctx, cutoff, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list undispatched requests: %w", err)
	}

	var sent int
	for _, req := range pending {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}

		_, err := r.dispatcher.Dispatch(ctx, req)
		switch {
		case err == nil:
			sent++
			if err := r.events.PublishStatusChanged(ctx, domain.NewStatusChanged(req)); err != nil {
				r.logger.Warn("failed to publish status event", "request_id", req.ID, "status", req.Status, "error", err)
			}
		case errors.Is(err, domain.ErrPublishFailed):
			return sent, err
		default:
			r.logger.Error("redispatch failed",
				"request_id", req.ID,
				"decision_id", req.DecisionID,
				"attempt", req.Attempt,
				"error", err,
			)
		}
	}

	if sent > 0 {
		r.logger.Info("redispatched stranded requests", "count", sent, "pending", len(pending))
	}
	return sent, nil
}
