package rabbitmq

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/israelio/rabbit-wire/internal/frame"
	"github.com/israelio/rabbit-wire/internal/protocol"
	"github.com/israelio/rabbit-wire/internal/util"
)

// ConsumerCallback is a callback-based consumer interface
type ConsumerCallback interface {
	HandleConsumeOk(consumerTag string)
	HandleCancelOk(consumerTag string)
	HandleCancel(consumerTag string) error
	HandleDelivery(consumerTag string, delivery Delivery) error
	HandleShutdown(consumerTag string, cause error)
}

// DefaultConsumer provides default no-op implementations of ConsumerCallback
type DefaultConsumer struct{}

// HandleConsumeOk is called when the consumer is registered
func (dc *DefaultConsumer) HandleConsumeOk(consumerTag string) {}

// HandleCancelOk is called when the consumer is cancelled by the client
func (dc *DefaultConsumer) HandleCancelOk(consumerTag string) {}

// HandleCancel is called when the broker cancels the consumer
func (dc *DefaultConsumer) HandleCancel(consumerTag string) error {
	return nil
}

// HandleDelivery is called for every message
func (dc *DefaultConsumer) HandleDelivery(consumerTag string, delivery Delivery) error {
	return nil
}

// HandleShutdown is called when the channel or connection ends
func (dc *DefaultConsumer) HandleShutdown(consumerTag string, cause error) {}

// DeliveryHandlerFunc is a function-based delivery handler
type DeliveryHandlerFunc func(consumerTag string, delivery Delivery) error

// ConsumeOptions configures consumer behavior
type ConsumeOptions struct {
	AutoAck   bool
	Exclusive bool
	NoLocal   bool
	NoWait    bool
	Args      Table
}

type consumerEnd int

const (
	endCancelOk consumerEnd = iota
	endPeerCancel
	endShutdown
)

// consumer owns an unbounded mailbox drained by its own goroutine, so a
// slow consumer never stalls the receive goroutine.
type consumer struct {
	ch         *Channel
	tag        string
	queue      string
	callback   ConsumerCallback
	autoAck    bool
	deliveries chan Delivery

	mailbox *util.Mailbox[Delivery]
	stop    chan struct{}

	endOnce sync.Once
	end     consumerEnd
	cause   error
}

func newConsumer(ch *Channel, tag, queue string, callback ConsumerCallback) *consumer {
	c := &consumer{
		ch:       ch,
		tag:      tag,
		queue:    queue,
		callback: callback,
		mailbox:  util.NewMailbox[Delivery](),
		stop:     make(chan struct{}),
	}
	if callback == nil {
		c.deliveries = make(chan Delivery)
	}
	return c
}

func (c *consumer) run() {
	defer c.finish()

	for {
		d, ok := c.mailbox.Receive(c.stop)
		if !ok {
			return
		}

		if c.callback != nil {
			if err := c.callback.HandleDelivery(c.tag, d); err != nil {
				c.ch.conn.factory.ErrorHandler.HandleConsumerError(c.ch, c.tag, err)
			}
			continue
		}

		select {
		case c.deliveries <- d:
		case <-c.stop:
			return
		}
	}
}

func (c *consumer) finish() {
	if c.deliveries != nil {
		close(c.deliveries)
	}
	if c.callback == nil {
		return
	}

	switch c.end {
	case endCancelOk:
		c.callback.HandleCancelOk(c.tag)
	case endPeerCancel:
		if err := c.callback.HandleCancel(c.tag); err != nil {
			c.ch.conn.factory.ErrorHandler.HandleConsumerError(c.ch, c.tag, err)
		}
	case endShutdown:
		c.callback.HandleShutdown(c.tag, c.cause)
	}
}

// cancel lets queued deliveries drain, then ends the consumer
func (c *consumer) cancel(end consumerEnd) {
	c.endOnce.Do(func() {
		c.end = end
		c.mailbox.Close()
	})
}

// abort ends the consumer and drops queued deliveries
func (c *consumer) abort(cause error) {
	c.endOnce.Do(func() {
		c.end = endShutdown
		c.cause = cause
		c.mailbox.Close()
		close(c.stop)
	})
}

// Consume starts a consumer and returns its deliveries. The channel is
// closed when the consumer is cancelled or the channel ends.
func (ch *Channel) Consume(queue, consumerTag string, opts ConsumeOptions) (<-chan Delivery, error) {
	c, err := ch.startConsumer(queue, consumerTag, opts, nil)
	if err != nil {
		return nil, err
	}
	return c.deliveries, nil
}

// ConsumeWithCallback starts a consumer that calls callback for every
// delivery, one at a time, and returns its tag
func (ch *Channel) ConsumeWithCallback(queue, consumerTag string, opts ConsumeOptions, callback ConsumerCallback) (string, error) {
	c, err := ch.startConsumer(queue, consumerTag, opts, callback)
	if err != nil {
		return "", err
	}
	return c.tag, nil
}

// ConsumeWithHandler starts a consumer with a simple function handler
func (ch *Channel) ConsumeWithHandler(queue, consumerTag string, opts ConsumeOptions, handler DeliveryHandlerFunc) (string, error) {
	return ch.ConsumeWithCallback(queue, consumerTag, opts, &handlerConsumer{handler: handler})
}

// handlerConsumer wraps a DeliveryHandlerFunc
type handlerConsumer struct {
	DefaultConsumer
	handler DeliveryHandlerFunc
}

// HandleDelivery delegates to the handler function
func (hc *handlerConsumer) HandleDelivery(consumerTag string, delivery Delivery) error {
	return hc.handler(consumerTag, delivery)
}

func (ch *Channel) startConsumer(queue, tag string, opts ConsumeOptions, callback ConsumerCallback) (*consumer, error) {
	if tag == "" {
		tag = generateConsumerTag()
	}

	c := newConsumer(ch, tag, queue, callback)
	c.autoAck = opts.AutoAck

	// Deliveries may follow consume-ok before the call returns.
	ch.consumerMux.Lock()
	if _, dup := ch.consumers[tag]; dup {
		ch.consumerMux.Unlock()
		return nil, NewError(protocol.ReplyNotAllowed, "consumer tag in use: "+tag, false)
	}
	ch.consumers[tag] = c
	ch.consumerMux.Unlock()

	_, err := ch.rpc(&protocol.BasicConsume{
		Queue:       queue,
		ConsumerTag: tag,
		NoLocal:     opts.NoLocal,
		NoAck:       opts.AutoAck,
		Exclusive:   opts.Exclusive,
		NoWait:      opts.NoWait,
		Arguments:   opts.Args,
	})
	if err != nil {
		ch.removeConsumer(tag)
		return nil, err
	}

	go c.run()

	if callback != nil {
		callback.HandleConsumeOk(tag)
	}
	ch.logger.Debug("consumer started", zap.String("consumer_tag", tag), zap.String("queue", queue))
	return c, nil
}

// BasicCancel cancels a consumer. Deliveries already received are still
// handed over before its delivery channel closes.
func (ch *Channel) BasicCancel(consumerTag string, noWait bool) error {
	if _, err := ch.rpc(&protocol.BasicCancel{ConsumerTag: consumerTag, NoWait: noWait}); err != nil {
		return err
	}

	if c := ch.removeConsumer(consumerTag); c != nil {
		c.cancel(endCancelOk)
	}
	return nil
}

func (ch *Channel) removeConsumer(tag string) *consumer {
	ch.consumerMux.Lock()
	defer ch.consumerMux.Unlock()

	c := ch.consumers[tag]
	delete(ch.consumers, tag)
	return c
}

func (ch *Channel) handlePeerCancel(tag string) {
	c := ch.removeConsumer(tag)
	if c == nil {
		return
	}
	ch.logger.Warn("consumer cancelled by broker", zap.String("consumer_tag", tag))
	c.cancel(endPeerCancel)
}

func (ch *Channel) handleDeliver(m *protocol.BasicDeliver, msg *frame.Message) error {
	props, err := DecodeProperties(msg.Properties)
	if err != nil {
		return err
	}

	ch.consumerMux.RLock()
	c := ch.consumers[m.ConsumerTag]
	ch.consumerMux.RUnlock()

	if c == nil {
		ch.logger.Warn("delivery for unknown consumer",
			zap.String("consumer_tag", m.ConsumerTag),
			zap.Uint64("delivery_tag", m.DeliveryTag))
		return nil
	}

	d := Delivery{
		ConsumerTag: m.ConsumerTag,
		DeliveryTag: m.DeliveryTag,
		Redelivered: m.Redelivered,
		Exchange:    m.Exchange,
		RoutingKey:  m.RoutingKey,
		Properties:  props,
		Body:        msg.Body,
		settlement:  settlement{channel: ch, tag: m.DeliveryTag, noAck: c.autoAck},
	}
	if c.mailbox.Push(d) {
		ch.conn.metrics.MessageConsumed()
	}
	return nil
}

// shutdownConsumers ends every consumer with cause
func (ch *Channel) shutdownConsumers(cause error) {
	ch.consumerMux.Lock()
	consumers := ch.consumers
	ch.consumers = make(map[string]*consumer)
	ch.consumerMux.Unlock()

	for _, c := range consumers {
		c.abort(cause)
	}
}

func generateConsumerTag() string {
	return "ctag-" + uuid.NewString()
}
