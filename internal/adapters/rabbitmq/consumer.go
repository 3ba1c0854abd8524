package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one message body.
type Handler func(ctx context.Context, body []byte) error

// Disposition is what the consumer does with a delivery after its handler returns.
type Disposition int

const (
	Ack Disposition = iota
	// DeadLetter rejects without requeue; the broker routes the message to the queue's DLQ.
	DeadLetter
	Requeue
)

func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case DeadLetter:
		return "dead_letter"
	case Requeue:
		return "requeue"
	default:
		return fmt.Sprintf("disposition(%d)", int(d))
	}
}

// Classifier maps a handler result to a disposition.
type Classifier func(err error) Disposition

// ReceiptDisposition dead-letters kvitteringer that can never succeed and
// requeues the rest, including one that overtook its order's SENT commit.
func ReceiptDisposition(err error) Disposition {
	switch {
	case err == nil:
		return Ack
	case errors.Is(err, domain.ErrAcknowledgedBeforeSent):
		return Requeue
	case domain.IsProtocolError(err),
		domain.IsStateError(err),
		domain.IsErrorCode(err, domain.ErrCodeUnknownCorrelationKey):
		return DeadLetter
	default:
		return Requeue
	}
}

// DecisionDisposition dead-letters decisions that failed validation or
// verification, and those whose order already reached the broker or is stored
// NEW: redelivery would not dispatch them again.
func DecisionDisposition(err error) Disposition {
	var domainErr *domain.DomainError
	switch {
	case err == nil:
		return Ack
	case domain.IsProtocolError(err),
		errors.As(err, &domainErr),
		errors.Is(err, domain.ErrPublishFailed),
		errors.Is(err, domain.ErrDispatchInconsistent):
		return DeadLetter
	default:
		return Requeue
	}
}

// Consumer runs a fixed pool of workers over one queue. Each delivery is
// acknowledged only after its handler returned.
type Consumer struct {
	conn     *Connection
	queue    string
	dlq      string
	prefetch int
	workers  int
	handler  Handler
	classify Classifier
	logger   *slog.Logger
}

func NewConsumer(
	conn *Connection,
	queue, dlq string,
	prefetch, workers int,
	handler Handler,
	classify Classifier,
	logger *slog.Logger,
) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if prefetch < workers {
		prefetch = workers
	}
	return &Consumer{
		conn:     conn,
		queue:    queue,
		dlq:      dlq,
		prefetch: prefetch,
		workers:  workers,
		handler:  handler,
		classify: classify,
		logger:   logger.With("queue", queue),
	}
}

// Run blocks until ctx is cancelled, returning nil, or the channel closes,
// returning ErrTransportClosed. It does not reconnect.
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := declareQueue(ch, c.queue, c.dlq); err != nil {
		return err
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	tag := "settlement-" + c.queue
	deliveries, err := ch.Consume(c.queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range deliveries {
				c.handle(workCtx, d)
			}
		}()
	}

	c.logger.Info("consumer started", "workers", c.workers, "prefetch", c.prefetch)

	select {
	case <-ctx.Done():
		c.logger.Info("stopping consumer")
		// Cancel stops new deliveries; workers drain what was already delivered.
		if err := ch.Cancel(tag, false); err != nil {
			c.logger.Warn("failed to cancel consumer", "error", err)
			_ = ch.Close()
		}
		wg.Wait()
		return nil
	case amqpErr := <-closed:
		cancel()
		wg.Wait()
		c.logger.Error("consumer channel closed", "error", amqpErr)
		if amqpErr != nil {
			return fmt.Errorf("%w: %s", ErrTransportClosed, amqpErr.Error())
		}
		return ErrTransportClosed
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	err := c.handler(ctx, d.Body)
	disposition := c.classify(err)

	switch disposition {
	case Ack:
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Warn("failed to ack delivery", "delivery_tag", d.DeliveryTag, "error", ackErr)
		}
		return
	case DeadLetter:
		c.logger.Error("dead-lettering message",
			"delivery_tag", d.DeliveryTag,
			"correlation_id", d.CorrelationId,
			"payload", string(d.Body),
			"error", err,
		)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Warn("failed to reject delivery", "delivery_tag", d.DeliveryTag, "error", nackErr)
		}
	case Requeue:
		c.logger.Warn("requeueing message",
			"delivery_tag", d.DeliveryTag,
			"correlation_id", d.CorrelationId,
			"redelivered", d.Redelivered,
			"error", err,
		)
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Warn("failed to requeue delivery", "delivery_tag", d.DeliveryTag, "error", nackErr)
		}
	}
}
