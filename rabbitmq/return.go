package rabbitmq

import (
	"go.uber.org/zap"

	"github.com/israelio/rabbit-wire/internal/frame"
	"github.com/israelio/rabbit-wire/internal/protocol"
)

// Return represents a message returned by the broker (unroutable)
type Return struct {
	ReplyCode  uint16
	ReplyText  string
	Exchange   string
	RoutingKey string
	Properties Properties
	Body       []byte
}

// ReturnListener handles returned messages
type ReturnListener interface {
	HandleReturn(ret Return)
}

// ReturnListenerFunc adapts a function to ReturnListener
type ReturnListenerFunc func(ret Return)

// HandleReturn calls f
func (f ReturnListenerFunc) HandleReturn(ret Return) { f(ret) }

// NotifyReturn registers a channel to receive returned messages. Returns are
// delivered in order from a dedicated goroutine; the channel must be drained.
// It is closed when the channel ends.
func (ch *Channel) NotifyReturn(c chan Return) chan Return {
	ch.returns.Add(func(ret Return) { c <- ret }, func() { close(c) })
	return c
}

// SetReturnCallback registers fn for returned messages
func (ch *Channel) SetReturnCallback(fn func(Return)) {
	ch.AddReturnListener(ReturnListenerFunc(fn))
}

// AddReturnListener adds a callback-based return listener
func (ch *Channel) AddReturnListener(listener ReturnListener) {
	ch.returns.Add(func(ret Return) {
		defer func() {
			if r := recover(); r != nil {
				ch.conn.factory.ErrorHandler.HandleReturnListenerError(ch, panicError(r))
			}
		}()
		listener.HandleReturn(ret)
	}, nil)
}

func (ch *Channel) handleReturn(m *protocol.BasicReturn, msg *frame.Message) error {
	props, err := DecodeProperties(msg.Properties)
	if err != nil {
		return err
	}

	ret := Return{
		ReplyCode:  m.ReplyCode,
		ReplyText:  m.ReplyText,
		Exchange:   m.Exchange,
		RoutingKey: m.RoutingKey,
		Properties: props,
		Body:       msg.Body,
	}

	ch.conn.metrics.MessageReturned()
	if !ch.returns.Publish(ret) {
		ch.logger.Debug("dropping return with no listener",
			zap.Uint16("reply_code", m.ReplyCode),
			zap.String("exchange", m.Exchange),
			zap.String("routing_key", m.RoutingKey))
	}
	return nil
}
