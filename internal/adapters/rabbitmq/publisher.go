package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ContentTypeXML  = "application/xml"
	ContentTypeJSON = "application/json"
)

// Publisher sends persistent messages to one queue on a confirm-mode channel
// and waits for the broker's ack of each message.
type Publisher struct {
	ch          *amqp.Channel
	queue       string
	contentType string
	mu          sync.Mutex
}

func NewPublisher(conn *Connection, queue, dlq, contentType string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := declareQueue(ch, queue, dlq); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	return &Publisher{
		ch:          ch,
		queue:       queue,
		contentType: contentType,
	}, nil
}

// Publish returns nil only after the broker confirmed the message.
func (p *Publisher) Publish(ctx context.Context, body []byte, correlationID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg := amqp.Publishing{
		ContentType:   p.contentType,
		DeliveryMode:  amqp.Persistent,
		CorrelationId: correlationID,
		Timestamp:     time.Now().UTC(),
		Body:          body,
	}

	// The confirmation is bound to this message's delivery tag.
	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, "", p.queue, false, false, msg)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}
	if !acked {
		return fmt.Errorf("publish to %s: message not confirmed", p.queue)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

// StatusEvents publishes status-changed events as JSON.
type StatusEvents struct {
	pub *Publisher
}

func NewStatusEvents(pub *Publisher) *StatusEvents {
	return &StatusEvents{pub: pub}
}

func (s *StatusEvents) PublishStatusChanged(ctx context.Context, event domain.StatusChanged) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	return s.pub.Publish(ctx, body, event.RequestID.String())
}
