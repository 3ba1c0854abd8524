package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/DanielPopoola/etterlatte-settlement/internal/core/ports"
)

// Dispatcher serializes a NEW request, publishes it on the order queue and
// records the dispatch. Publishing happens before the SENT transition so a
// request is never marked sent that the broker did not confirm.
type Dispatcher struct {
	store          ports.PaymentOrderStore
	codec          ports.OrderCodec
	publisher      ports.Publisher
	publishTimeout time.Duration
	now            func() time.Time
	logger         *slog.Logger
}

func NewDispatcher(
	store ports.PaymentOrderStore,
	codec ports.OrderCodec,
	publisher ports.Publisher,
	publishTimeout time.Duration,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		store:          store,
		codec:          codec,
		publisher:      publisher,
		publishTimeout: publishTimeout,
		now:            time.Now,
		logger:         logger,
	}
}

// Dispatch returns the order that was published. On error the request stays NEW,
// except when wrapping ErrDispatchInconsistent: then the broker holds the order
// while the store still says NEW, and an operator must reconcile.
func (d *Dispatcher) Dispatch(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentOrder, error) {
	if req.Status != domain.StatusNew {
		return nil, domain.NewStateError("dispatch", req.ID.String(), req.Status, domain.StatusNew)
	}

	order, err := d.codec.Encode(req, d.now())
	if err != nil {
		return nil, err
	}

	publishCtx, cancel := context.WithTimeout(ctx, d.publishTimeout)
	err = d.publisher.Publish(publishCtx, order.Payload, order.CorrelationKey)
	cancel()
	if err != nil {
		d.logger.Warn("payment order not confirmed by broker",
			"request_id", req.ID,
			"decision_id", req.DecisionID,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", domain.ErrPublishFailed, err)
	}

	if err := d.store.RecordDispatch(ctx, req.ID, order); err != nil {
		d.logger.Error("payment order published but not recorded as sent",
			"request_id", req.ID,
			"decision_id", req.DecisionID,
			"correlation_key", order.CorrelationKey,
			"consistency_violation", true,
			"error", err,
		)
		return order, fmt.Errorf("%w: %w", domain.ErrDispatchInconsistent, err)
	}

	sentAt := order.ReconciliationKey
	key := order.CorrelationKey
	req.Status = domain.StatusSent
	req.ReconciliationKey = &sentAt
	req.CorrelationKey = &key
	req.SentAt = &sentAt
	req.UpdatedAt = sentAt

	d.logger.Info("payment order dispatched",
		"request_id", req.ID,
		"case_id", req.CaseID,
		"decision_id", req.DecisionID,
		"attempt", req.Attempt,
		"routing_code", order.RoutingCode,
	)
	return order, nil
}
