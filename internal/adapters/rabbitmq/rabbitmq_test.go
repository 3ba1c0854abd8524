package rabbitmq_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/adapters/rabbitmq"
	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/DanielPopoola/etterlatte-settlement/internal/testhelpers"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
)

type BrokerTestSuite struct {
	suite.Suite
	broker *testhelpers.TestBroker
	conn   *rabbitmq.Connection
}

func TestBrokerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping broker integration tests in short mode")
	}
	suite.Run(t, new(BrokerTestSuite))
}

func (s *BrokerTestSuite) SetupSuite() {
	s.broker = testhelpers.SetupTestBroker(s.T())
	conn, err := rabbitmq.Dial(s.broker.URL, testhelpers.Logger())
	s.Require().NoError(err)
	s.conn = conn
}

func (s *BrokerTestSuite) TearDownSuite() {
	_ = s.conn.Close()
	s.broker.Cleanup(s.T())
}

func (s *BrokerTestSuite) TestPublishIsConfirmedAndConsumed() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pub, err := rabbitmq.NewPublisher(s.conn, "orders.roundtrip", "", rabbitmq.ContentTypeXML)
	s.Require().NoError(err)
	defer pub.Close()

	s.Require().NoError(pub.Publish(ctx, []byte("<oppdrag/>"), "1-2"))

	received := make(chan []byte, 1)
	consumer := rabbitmq.NewConsumer(s.conn, "orders.roundtrip", "", 1, 1,
		func(ctx context.Context, body []byte) error {
			received <- body
			return nil
		},
		rabbitmq.ReceiptDisposition, testhelpers.Logger())

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- consumer.Run(runCtx) }()

	select {
	case body := <-received:
		s.Equal("<oppdrag/>", string(body))
	case <-ctx.Done():
		s.FailNow("message not consumed")
	}

	stop()
	s.NoError(<-done)
}

func (s *BrokerTestSuite) TestProtocolErrorIsDeadLettered() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pub, err := rabbitmq.NewPublisher(s.conn, "receipts.dl", "receipts.dl.dlq", rabbitmq.ContentTypeXML)
	s.Require().NoError(err)
	defer pub.Close()
	s.Require().NoError(pub.Publish(ctx, []byte("<broken"), "x"))

	var mu sync.Mutex
	attempts := 0
	consumer := rabbitmq.NewConsumer(s.conn, "receipts.dl", "receipts.dl.dlq", 1, 1,
		func(ctx context.Context, body []byte) error {
			mu.Lock()
			attempts++
			mu.Unlock()
			return &domain.ProtocolError{Payload: body, Err: errors.New("unexpected EOF")}
		},
		rabbitmq.ReceiptDisposition, testhelpers.Logger())

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- consumer.Run(runCtx) }()

	ch, err := s.conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	var dead amqp.Delivery
	s.Eventually(func() bool {
		d, ok, err := ch.Get("receipts.dl.dlq", true)
		if err != nil || !ok {
			return false
		}
		dead = d
		return true
	}, 20*time.Second, 100*time.Millisecond)

	stop()
	s.NoError(<-done)
	s.Equal("<broken", string(dead.Body))
	mu.Lock()
	s.Equal(1, attempts)
	mu.Unlock()
}

func (s *BrokerTestSuite) TestStatusEventsArePublishedAsJSON() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pub, err := rabbitmq.NewPublisher(s.conn, "status.events", "", rabbitmq.ContentTypeJSON)
	s.Require().NoError(err)
	defer pub.Close()

	err = rabbitmq.NewStatusEvents(pub).PublishStatusChanged(ctx, domain.StatusChanged{
		CaseID:     1,
		DecisionID: 2,
		Status:     domain.StatusAccepted,
		At:         time.Now().UTC(),
	})
	s.Require().NoError(err)

	ch, err := s.conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	d, ok, err := ch.Get("status.events", true)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(rabbitmq.ContentTypeJSON, d.ContentType)
	s.Contains(string(d.Body), `"status":"ACCEPTED"`)
}
