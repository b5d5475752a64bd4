package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DirectReplyTo is the pseudo-queue the broker routes replies through
// without a declared reply queue.
const DirectReplyTo = "amq.rabbitmq.reply-to"

// RpcClient correlates request messages with their replies over direct
// reply-to. Calls may be issued concurrently.
type RpcClient struct {
	channel      *Channel
	consumerTag  string
	replies      <-chan Delivery
	logger       *zap.Logger
	mu           sync.Mutex
	pending      map[string]chan Delivery
	closed       atomic.Bool
	dispatchDone chan struct{}
}

// NewRpcClient starts consuming direct replies on ch. The channel should
// not be shared with other consumers of DirectReplyTo.
func NewRpcClient(ch *Channel) (*RpcClient, error) {
	tag := "rpc-" + uuid.NewString()
	replies, err := ch.Consume(DirectReplyTo, tag, ConsumeOptions{AutoAck: true})
	if err != nil {
		return nil, err
	}

	c := &RpcClient{
		channel:      ch,
		consumerTag:  tag,
		replies:      replies,
		logger:       ch.logger.With(zap.String("component", "rpc")),
		pending:      make(map[string]chan Delivery),
		dispatchDone: make(chan struct{}),
	}

	go c.dispatch()
	return c, nil
}

// Call publishes msg and waits for the reply carrying its correlation id.
// An expired ctx deadline yields a *TimeoutError; a reply arriving after
// that is dropped.
func (c *RpcClient) Call(ctx context.Context, exchange, routingKey string, msg Publishing) (Delivery, error) {
	if c.closed.Load() {
		return Delivery{}, ErrChannelClosed
	}

	id := uuid.NewString()
	reply := make(chan Delivery, 1)
	c.mu.Lock()
	c.pending[id] = reply
	c.mu.Unlock()
	defer c.forget(id)

	msg.Properties.ReplyTo = DirectReplyTo
	msg.Properties.CorrelationId = id

	start := time.Now()
	if err := c.channel.PublishWithContext(ctx, exchange, routingKey, false, false, msg); err != nil {
		return Delivery{}, err
	}

	select {
	case d := <-reply:
		return d, nil
	case <-c.dispatchDone:
		return Delivery{}, ErrChannelClosed
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Delivery{}, &TimeoutError{Op: "rpc.call", Timeout: time.Since(start), Err: ctx.Err()}
		}
		return Delivery{}, ctx.Err()
	}
}

func (c *RpcClient) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *RpcClient) dispatch() {
	defer close(c.dispatchDone)

	for d := range c.replies {
		c.mu.Lock()
		reply, ok := c.pending[d.Properties.CorrelationId]
		c.mu.Unlock()

		if !ok {
			c.logger.Debug("dropping uncorrelated reply", zap.String("correlation_id", d.Properties.CorrelationId))
			continue
		}
		select {
		case reply <- d:
		default:
		}
	}
}

// Close cancels the reply consumer. Calls still waiting fail with
// ErrChannelClosed.
func (c *RpcClient) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	err := c.channel.BasicCancel(c.consumerTag, false)
	if err != nil && !c.channel.IsClosed() {
		return err
	}

	select {
	case <-c.dispatchDone:
	case <-c.channel.conn.clock.After(receiveLoopStopWait):
		c.logger.Warn("reply dispatcher still running after close")
	}
	return nil
}
