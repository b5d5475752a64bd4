package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/israelio/rabbit-wire/rabbitmq"
)

var payload = []byte("Test payload.")

type probe struct {
	factory *rabbitmq.ConnectionFactory
	queue   string
	logger  *zap.Logger
}

// run connects, declares the probe queue and runs one probe. It reports
// whether a timeout was observed; the returned error carries anything else
// that went wrong, cleanup included.
func (p *probe) run(ctx context.Context, mode string, count int) (observed bool, err error) {
	conn, err := p.factory.NewConnection(ctx)
	if err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	defer func() {
		err = multierr.Append(err, p.cleanup(conn))
	}()

	ch, err := conn.NewChannel()
	if err != nil {
		return false, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, rabbitmq.QueueDeclareOptions{}); err != nil {
		return false, fmt.Errorf("declare %s: %w", p.queue, err)
	}

	switch mode {
	case "write":
		return p.probeWrite(ctx, ch, count)
	case "read":
		return p.probeRead(ctx, ch)
	default:
		return false, fmt.Errorf("unknown mode %q", mode)
	}
}

// probeWrite publishes until a write times out or count is reached.
func (p *probe) probeWrite(ctx context.Context, ch *rabbitmq.Channel, count int) (bool, error) {
	msg := rabbitmq.Publishing{Body: payload}
	for i := 0; i < count; i++ {
		err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg)
		if err == nil {
			continue
		}
		if te, ok := timeoutOf(err); ok {
			p.logger.Info("write timeout observed",
				zap.Int("published", i),
				zap.String("op", te.Op),
				zap.Bool("partial", te.Partial),
				zap.Stringer("outcome", rabbitmq.OutcomeOf(err)))
			return true, nil
		}
		return false, fmt.Errorf("publish %d: %w", i, err)
	}
	p.logger.Warn("no write timeout", zap.Int("published", count))
	return false, nil
}

// probeRead publishes one message inside a transaction and waits for the
// commit.
func (p *probe) probeRead(ctx context.Context, ch *rabbitmq.Channel) (bool, error) {
	if err := ch.TxSelect(); err != nil {
		return false, fmt.Errorf("tx.select: %w", err)
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, rabbitmq.Publishing{Body: payload}); err != nil {
		return false, fmt.Errorf("publish: %w", err)
	}

	err := ch.TxCommitWithTimeout(ctx, p.factory.ReadTimeout)
	if err == nil {
		p.logger.Warn("commit completed without a timeout")
		return false, nil
	}
	if te, ok := timeoutOf(err); ok {
		p.logger.Info("read timeout observed",
			zap.String("op", te.Op),
			zap.Duration("after", te.Timeout),
			zap.Stringer("outcome", rabbitmq.OutcomeOf(err)))
		return true, nil
	}
	return false, fmt.Errorf("tx.commit: %w", err)
}

// cleanup deletes the probe queue on a fresh channel and closes the
// connection. A torn-down connection leaves the queue behind.
func (p *probe) cleanup(conn *rabbitmq.Connection) error {
	if conn.IsClosed() {
		p.logger.Warn("connection lost, queue left behind", zap.String("queue", p.queue))
		return nil
	}

	var err error
	if ch, cerr := conn.NewChannel(); cerr != nil {
		err = multierr.Append(err, cerr)
	} else if _, derr := ch.QueueDelete(p.queue, rabbitmq.QueueDeleteOptions{}); derr != nil {
		err = multierr.Append(err, fmt.Errorf("delete %s: %w", p.queue, derr))
	}
	return multierr.Append(err, conn.Close())
}

func timeoutOf(err error) (*rabbitmq.TimeoutError, bool) {
	var te *rabbitmq.TimeoutError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
