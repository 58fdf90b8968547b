package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Session is one broker connection with a single confirm-mode channel.
type Session interface {
	Declare(topology Topology) error
	// PublishConfirmed publishes msg and waits for the broker's confirm.
	// acked is false on a nack; err is set on transport failure.
	PublishConfirmed(ctx context.Context, exchange, routingKey string, msg amqp091.Publishing) (acked bool, err error)
	// NotifyClose returns a channel that receives the close cause, if any, and is
	// closed when the session ends.
	NotifyClose() <-chan error
	IsClosed() bool
	Close() error
}

// Dialer opens a Session to url.
type Dialer func(ctx context.Context, url string) (Session, error)

const dialTimeout = 10 * time.Second

type amqpSession struct {
	conn   *amqp091.Connection
	ch     *amqp091.Channel
	closed chan error
}

// DialAMQP opens an AMQP 0-9-1 connection and a channel in confirm mode.
func DialAMQP(ctx context.Context, url string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(url, amqp091.Config{
		Heartbeat:  10 * time.Second,
		Dial:       amqp091.DefaultDial(dialTimeout),
		Properties: amqp091.Table{"connection_name": "solana-indexer"},
	})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	s := &amqpSession{conn: conn, ch: ch, closed: make(chan error, 1)}
	connClosed := conn.NotifyClose(make(chan *amqp091.Error, 1))
	chClosed := ch.NotifyClose(make(chan *amqp091.Error, 1))
	go func() {
		var cause *amqp091.Error
		select {
		case cause = <-connClosed:
		case cause = <-chClosed:
		}
		if cause != nil {
			s.closed <- cause
		}
		close(s.closed)
	}()
	return s, nil
}

func (s *amqpSession) Declare(t Topology) error {
	if err := s.ch.ExchangeDeclare(t.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := s.ch.QueueDeclare(t.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := s.ch.QueueBind(t.Queue, t.RoutingKey, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue key=%s: %w", t.RoutingKey, err)
	}
	return nil
}

func (s *amqpSession) PublishConfirmed(ctx context.Context, exchange, routingKey string, msg amqp091.Publishing) (bool, error) {
	dc, err := s.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, false, false, msg)
	if err != nil {
		return false, err
	}
	return dc.WaitContext(ctx)
}

func (s *amqpSession) NotifyClose() <-chan error {
	return s.closed
}

func (s *amqpSession) IsClosed() bool {
	return s.conn.IsClosed() || s.ch.IsClosed()
}

func (s *amqpSession) Close() error {
	var errs []error
	if err := s.ch.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
		errs = append(errs, err)
	}
	if err := s.conn.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
