// Package rabbitmq carries payment orders, kvitteringer, reconciliation
// reports and decision events over AMQP 0-9-1.
package rabbitmq

import (
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrTransportClosed is returned by a consumer whose channel or connection was
// closed underneath it. The process is expected to exit and be restarted.
var ErrTransportClosed = errors.New("amqp transport closed")

type Connection struct {
	conn   *amqp.Connection
	logger *slog.Logger
}

func Dial(url string, logger *slog.Logger) (*Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	logger.Info("connected to rabbitmq")
	return &Connection{conn: conn, logger: logger}, nil
}

// Channel opens a dedicated channel. Publishers and consumers never share one.
func (c *Connection) Channel() (*amqp.Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return ch, nil
}

// NotifyClose delivers at most one error when the connection goes away.
func (c *Connection) NotifyClose() <-chan *amqp.Error {
	return c.conn.NotifyClose(make(chan *amqp.Error, 1))
}

func (c *Connection) Close() error {
	if c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}

// declareQueue declares a durable queue. When dlq is set, rejected messages
// are routed there through the default exchange.
func declareQueue(ch *amqp.Channel, name, dlq string) error {
	var args amqp.Table
	if dlq != "" {
		if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", dlq, err)
		}
		args = amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlq,
		}
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	return nil
}
