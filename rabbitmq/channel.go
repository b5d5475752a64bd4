package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/israelio/rabbit-wire/internal/frame"
	"github.com/israelio/rabbit-wire/internal/protocol"
	"github.com/israelio/rabbit-wire/internal/util"
	"github.com/israelio/rabbit-wire/internal/wait"
)

// ChannelState represents the state of a channel
type ChannelState int32

const (
	ChannelStateOpening ChannelState = iota
	ChannelStateOpen
	ChannelStateClosing
	ChannelStateClosed
	ChannelStateClosedByPeer
)

func (s ChannelState) String() string {
	switch s {
	case ChannelStateOpening:
		return "opening"
	case ChannelStateOpen:
		return "open"
	case ChannelStateClosing:
		return "closing"
	case ChannelStateClosed:
		return "closed"
	case ChannelStateClosedByPeer:
		return "closed-by-peer"
	default:
		return fmt.Sprintf("ChannelState(%d)", int32(s))
	}
}

// Channel represents an AMQP channel
type Channel struct {
	conn   *Connection
	id     uint16
	logger *zap.Logger

	state atomic.Int32

	opened   chan struct{}
	openOnce sync.Once
	openSent bool // guarded by rpcMu

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error

	// One synchronous request at a time
	rpcMu    sync.Mutex
	rpcState rpcState

	// Only the receive goroutine touches the assembler
	assembler frame.Assembler

	flow atomic.Bool

	publishMu sync.Mutex
	confirms  *confirmManager
	returns   *util.Fanout[Return]

	consumerMux sync.RWMutex
	consumers   map[string]*consumer

	notifyMu       sync.Mutex
	closeListeners []chan *Error
	flowListeners  []chan bool

	txMode atomic.Bool
}

func newChannel(c *Connection, id uint16) *Channel {
	ch := &Channel{
		conn:      c,
		id:        id,
		logger:    c.logger.With(zap.Uint16("channel", id)),
		opened:    make(chan struct{}),
		closed:    make(chan struct{}),
		returns:   util.NewFanout[Return](),
		consumers: make(map[string]*consumer),
	}
	ch.confirms = newConfirmManager(ch)
	ch.state.Store(int32(ChannelStateOpening))
	ch.flow.Store(true)
	return ch
}

// Open waits for the broker to accept the channel. It sends channel.open
// once; after a timeout, calling Open again keeps waiting for the late
// open-ok instead of sending a second request.
func (ch *Channel) Open(ctx context.Context) error {
	select {
	case <-ch.opened:
		return nil
	default:
	}

	ch.rpcMu.Lock()
	defer ch.rpcMu.Unlock()

	if ch.GetState() == ChannelStateOpen {
		return nil
	}
	if ch.openSent {
		return ch.awaitOpen(ctx)
	}

	ch.openSent = true
	if _, err := ch.callLocked(ctx, &protocol.ChannelOpen{}, ch.conn.factory.ReadTimeout); err != nil {
		var we *frame.WriteError
		if errors.As(err, &we) {
			// channel.open never left the client
			ch.openSent = false
		}
		return fmt.Errorf("channel open: %w", err)
	}

	ch.markOpen()
	ch.logger.Debug("channel open")
	return nil
}

func (ch *Channel) awaitOpen(ctx context.Context) error {
	timeout := ch.conn.factory.ReadTimeout
	w := wait.Waiter[struct{}]{
		Ready:      ch.opened,
		Lost:       ch.closed,
		Cause:      ch.cause,
		Interrupts: ch.conn.factory.Interrupts,
		Mode:       ch.conn.factory.WaitMode,
		Clock:      ch.conn.clock,
	}
	_, err := w.Wait(ctx, wait.Deadline(ch.conn.clock, timeout))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, wait.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		ch.conn.metrics.TimeoutOccurred("channel.open")
		return &TimeoutError{Op: "channel.open", Timeout: timeout, Err: err}
	default:
		return fmt.Errorf("channel open: %w", err)
	}
}

// markOpen promotes an opening channel to open
func (ch *Channel) markOpen() {
	if ch.state.CompareAndSwap(int32(ChannelStateOpening), int32(ChannelStateOpen)) {
		ch.openOnce.Do(func() { close(ch.opened) })
	}
}

// handleFrame is called by the receive goroutine for every frame on this
// channel. A returned error is fatal for the connection.
func (ch *Channel) handleFrame(f *frame.Frame) error {
	switch ch.GetState() {
	case ChannelStateClosing, ChannelStateClosed, ChannelStateClosedByPeer:
		return ch.handleFrameWhileClosing(f)
	}

	switch f.Type {
	case protocol.FrameMethod:
		m, err := f.ParseMethod()
		if err != nil {
			return err
		}
		if protocol.HasContent(m) {
			return ch.assembler.Start(m)
		}
		if ch.assembler.Busy() {
			return fmt.Errorf("%w: %s arrived while content was incomplete", ErrProtocolViolation, protocol.MethodName(m))
		}
		return ch.handleMethod(m, nil)

	case protocol.FrameHeader:
		h, err := f.ParseHeader()
		if err != nil {
			return err
		}
		msg, err := ch.assembler.AddHeader(h)
		if err != nil || msg == nil {
			return err
		}
		return ch.handleMethod(msg.Method, msg)

	case protocol.FrameBody:
		msg, err := ch.assembler.AddBody(f.Payload)
		if err != nil || msg == nil {
			return err
		}
		return ch.handleMethod(msg.Method, msg)

	default:
		return fmt.Errorf("%w: %s", ErrProtocolViolation, f)
	}
}

// handleFrameWhileClosing discards everything but channel.close and replies
// to our own requests, which are still routed so a late close-ok frees the
// channel id.
func (ch *Channel) handleFrameWhileClosing(f *frame.Frame) error {
	if f.Type != protocol.FrameMethod {
		return nil
	}
	m, err := f.ParseMethod()
	if err != nil {
		return err
	}

	if cl, ok := m.(*protocol.ChannelClose); ok {
		ch.handlePeerClose(cl)
		return nil
	}
	if protocol.HasContent(m) {
		return nil
	}

	late, ok := ch.rpcState.route(m, nil)
	if late != nil {
		ch.lateReply(late, m)
		return nil
	}
	if !ok {
		if _, closeOk := m.(*protocol.ChannelCloseOk); closeOk {
			ch.conn.forget(ch)
			return nil
		}
		ch.logger.Debug("dropping method on closing channel", zap.String("method", protocol.MethodName(m)))
	}
	return nil
}

func (ch *Channel) handleMethod(m protocol.Method, msg *frame.Message) error {
	switch m := m.(type) {
	case *protocol.ChannelClose:
		ch.handlePeerClose(m)
		return nil
	case *protocol.ChannelFlow:
		return ch.handleFlow(m.Active)
	case *protocol.BasicDeliver:
		return ch.handleDeliver(m, msg)
	case *protocol.BasicReturn:
		return ch.handleReturn(m, msg)
	case *protocol.BasicAck:
		ch.confirms.resolve(m.DeliveryTag, m.Multiple, true)
		return nil
	case *protocol.BasicNack:
		ch.confirms.resolve(m.DeliveryTag, m.Multiple, false)
		return nil
	case *protocol.BasicCancel:
		ch.handlePeerCancel(m.ConsumerTag)
		return nil
	}

	late, ok := ch.rpcState.route(m, msg)
	switch {
	case late != nil:
		ch.lateReply(late, m)
	case !ok:
		ch.logger.Debug("dropping unexpected method", zap.String("method", protocol.MethodName(m)))
	}
	return nil
}

// lateReply handles the reply to a request whose wait already ended
func (ch *Channel) lateReply(p *pendingCall, m protocol.Method) {
	ch.logger.Debug("dropping late reply",
		zap.String("op", p.op),
		zap.String("reply", protocol.MethodName(m)))

	switch m.(type) {
	case *protocol.ChannelOpenOk:
		ch.markOpen()
	case *protocol.ChannelCloseOk:
		ch.conn.forget(ch)
	}
}

func (ch *Channel) handlePeerClose(cl *protocol.ChannelClose) {
	err := newServerError(cl.ReplyCode, cl.ReplyText, cl.ClassID, cl.MethodID)

	state := ch.GetState()
	crossed := state == ChannelStateClosing || state == ChannelStateClosed

	ch.shutdown(err, ChannelStateClosedByPeer)

	if f, ferr := frame.NewMethodFrame(ch.id, &protocol.ChannelCloseOk{}); ferr == nil {
		if serr := ch.conn.send("channel.close-ok", f); serr != nil {
			ch.logger.Debug("channel.close-ok not sent", zap.Error(serr))
		}
	}

	// With crossed closes the broker still owes a close-ok for ours.
	if !crossed {
		ch.conn.forget(ch)
	}

	ch.logger.Warn("channel closed by broker", zap.Error(err))
	ch.conn.metrics.ChannelError(err)
	ch.conn.factory.ErrorHandler.HandleChannelError(ch, err)
}

func (ch *Channel) handleFlow(active bool) error {
	ch.flow.Store(active)

	f, err := frame.NewMethodFrame(ch.id, &protocol.ChannelFlowOk{Active: active})
	if err != nil {
		return err
	}
	if err := ch.conn.send("channel.flow-ok", f); err != nil {
		ch.logger.Warn("channel.flow-ok not sent", zap.Error(err))
	}

	ch.logger.Warn("flow changed", zap.Bool("active", active))

	ch.notifyMu.Lock()
	defer ch.notifyMu.Unlock()
	for _, l := range ch.flowListeners {
		select {
		case l <- active:
		default:
		}
	}
	return nil
}

// shutdown moves the channel to its final state and releases everything
// waiting on it. Only the first call has an effect.
func (ch *Channel) shutdown(cause error, final ChannelState) {
	ch.closeOnce.Do(func() {
		ch.closeErr = cause
		ch.state.Store(int32(final))
		close(ch.closed)

		ch.shutdownConsumers(cause)
		ch.confirms.shutdown()
		ch.returns.Close()

		var amqpErr *Error
		report := cause != error(ErrChannelClosed) && errors.As(cause, &amqpErr)

		ch.notifyMu.Lock()
		for _, l := range ch.closeListeners {
			if report {
				select {
				case l <- amqpErr:
				default:
				}
			}
			close(l)
		}
		ch.closeListeners = nil
		for _, l := range ch.flowListeners {
			close(l)
		}
		ch.flowListeners = nil
		ch.notifyMu.Unlock()

		ch.conn.metrics.ChannelClosed()
	})
}

// cause reports why the channel ended. Valid once closed is closed.
func (ch *Channel) cause() error {
	return ch.closeErr
}

// Close closes the channel
func (ch *Channel) Close() error {
	return ch.CloseWithCode(protocol.ReplySuccess, "channel closed")
}

// CloseWithCode sends channel.close and waits up to the close timeout for
// close-ok. The channel ends closed locally whatever the broker does.
// Closing a channel that is already closing or closed returns nil.
//
// If close-ok does not arrive in time a *TimeoutError is returned and the
// channel id stays reserved until the late close-ok or the end of the
// connection.
func (ch *Channel) CloseWithCode(code int, text string) error {
	ch.rpcMu.Lock()
	defer ch.rpcMu.Unlock()

	if !ch.state.CompareAndSwap(int32(ChannelStateOpen), int32(ChannelStateClosing)) &&
		!ch.state.CompareAndSwap(int32(ChannelStateOpening), int32(ChannelStateClosing)) {
		return nil
	}

	m := &protocol.ChannelClose{ReplyCode: uint16(code), ReplyText: text}
	_, err := ch.callLocked(context.Background(), m, ch.conn.factory.CloseTimeout)
	ch.shutdown(ErrChannelClosed, ChannelStateClosed)

	var amqpErr *Error
	var lost *ConnectionLostError
	var te *TimeoutError
	switch {
	case err == nil:
		ch.conn.forget(ch)
		ch.logger.Debug("channel closed")
		return nil
	case errors.As(err, &lost):
		return nil
	case errors.As(err, &te):
		return err
	case errors.As(err, &amqpErr):
		// The broker closed the channel while our close was in flight.
		return nil
	default:
		return err
	}
}

// Flow asks the broker to pause (false) or resume (true) deliveries
func (ch *Channel) Flow(ctx context.Context, active bool) error {
	_, err := ch.call(ctx, &protocol.ChannelFlow{Active: active}, ch.conn.factory.ReadTimeout)
	return err
}

// Publish publishes a message to an exchange
func (ch *Channel) Publish(exchange, routingKey string, mandatory, immediate bool, msg Publishing) error {
	return ch.PublishWithContext(context.Background(), exchange, routingKey, mandatory, immediate, msg)
}

// PublishWithContext publishes a message. The method, header and body
// frames go out as one write bounded by the write timeout and ctx.
//
// It fails with ErrFlowBlocked while the broker has paused the channel and
// with a *TimeoutError when the socket does not accept the frames in time.
func (ch *Channel) PublishWithContext(ctx context.Context, exchange, routingKey string, mandatory, immediate bool, msg Publishing) error {
	_, err := ch.publish(ctx, exchange, routingKey, mandatory, immediate, msg, nil)
	return err
}

// publish returns the confirm sequence number of the message, or 0 when
// confirms are off. watch, if set, receives the confirm outcome.
func (ch *Channel) publish(ctx context.Context, exchange, routingKey string, mandatory, immediate bool, msg Publishing, watch *util.Cell[bool]) (uint64, error) {
	if ch.GetState() != ChannelStateOpen {
		return 0, ch.usable(&protocol.BasicPublish{})
	}
	if !ch.flow.Load() {
		return 0, ErrFlowBlocked
	}

	props, err := EncodeProperties(msg.Properties)
	if err != nil {
		return 0, err
	}

	frameMax := ch.conn.frameMax
	method, err := frame.NewMethodFrame(ch.id, &protocol.BasicPublish{
		Exchange:   exchange,
		RoutingKey: routingKey,
		Mandatory:  mandatory,
		Immediate:  immediate,
	})
	if err != nil {
		return 0, err
	}

	frames := make([]*frame.Frame, 0, 2+frame.BodyFrameCount(len(msg.Body), frameMax))
	frames = append(frames, method, frame.NewHeaderFrame(ch.id, protocol.ClassBasic, uint64(len(msg.Body)), props))
	frames = append(frames, frame.SplitBody(ch.id, msg.Body, frameMax)...)

	ch.publishMu.Lock()
	defer ch.publishMu.Unlock()

	seq := ch.confirms.reserve(watch)
	if err := ch.conn.sendContext(ctx, "basic.publish", frames...); err != nil {
		if OutcomeOf(err) != OutcomeFatal {
			ch.confirms.unreserve(seq)
		}
		return 0, err
	}

	ch.conn.metrics.MessagePublished()
	return seq, nil
}

// Qos sets the prefetch window
func (ch *Channel) Qos(prefetchCount, prefetchSize int, global bool) error {
	_, err := ch.rpc(&protocol.BasicQos{
		PrefetchCount: uint16(prefetchCount),
		PrefetchSize:  uint32(prefetchSize),
		Global:        global,
	})
	return err
}

// BasicGet polls one message from a queue. ok is false when the queue is
// empty.
func (ch *Channel) BasicGet(queue string, autoAck bool) (*GetResponse, bool, error) {
	r, err := ch.rpc(&protocol.BasicGet{Queue: queue, NoAck: autoAck})
	if err != nil {
		return nil, false, err
	}

	getOk, isOk := r.method.(*protocol.BasicGetOk)
	if !isOk || r.msg == nil {
		return nil, false, nil
	}

	props, err := DecodeProperties(r.msg.Properties)
	if err != nil {
		return nil, false, err
	}

	ch.conn.metrics.MessageConsumed()
	return &GetResponse{
		DeliveryTag:  getOk.DeliveryTag,
		Redelivered:  getOk.Redelivered,
		Exchange:     getOk.Exchange,
		RoutingKey:   getOk.RoutingKey,
		MessageCount: int(getOk.MessageCount),
		Properties:   props,
		Body:         r.msg.Body,
		settlement:   settlement{channel: ch, tag: getOk.DeliveryTag, noAck: autoAck},
	}, true, nil
}

// BasicAck acknowledges a delivery
func (ch *Channel) BasicAck(deliveryTag uint64, multiple bool) error {
	_, err := ch.call(context.Background(), &protocol.BasicAck{DeliveryTag: deliveryTag, Multiple: multiple}, 0)
	if err == nil {
		ch.conn.metrics.MessageAcked()
	}
	return err
}

// BasicNack negatively acknowledges a delivery
func (ch *Channel) BasicNack(deliveryTag uint64, multiple, requeue bool) error {
	_, err := ch.call(context.Background(), &protocol.BasicNack{DeliveryTag: deliveryTag, Multiple: multiple, Requeue: requeue}, 0)
	if err == nil {
		ch.conn.metrics.MessageNacked()
	}
	return err
}

// BasicReject rejects a delivery
func (ch *Channel) BasicReject(deliveryTag uint64, requeue bool) error {
	_, err := ch.call(context.Background(), &protocol.BasicReject{DeliveryTag: deliveryTag, Requeue: requeue}, 0)
	if err == nil {
		ch.conn.metrics.MessageRejected()
	}
	return err
}

// BasicRecover asks the broker to redeliver unacknowledged messages
func (ch *Channel) BasicRecover(requeue bool) error {
	_, err := ch.rpc(&protocol.BasicRecover{Requeue: requeue})
	return err
}

// BasicRecoverAsync is BasicRecover without waiting for recover-ok
func (ch *Channel) BasicRecoverAsync(requeue bool) error {
	_, err := ch.call(context.Background(), &protocol.BasicRecoverAsync{Requeue: requeue}, 0)
	return err
}

// GetChannelID returns the channel number
func (ch *Channel) GetChannelID() uint16 {
	return ch.id
}

// GetState returns the current channel state
func (ch *Channel) GetState() ChannelState {
	return ChannelState(ch.state.Load())
}

// IsClosed reports whether the channel reached a final state
func (ch *Channel) IsClosed() bool {
	select {
	case <-ch.closed:
		return true
	default:
		return false
	}
}

// IsFlowActive reports whether the broker currently accepts publishes
func (ch *Channel) IsFlowActive() bool {
	return ch.flow.Load()
}

// NotifyClose registers a listener for channel closure. A broker or
// connection error is sent, then the channel is closed. A local Close only
// closes it.
func (ch *Channel) NotifyClose(c chan *Error) chan *Error {
	ch.notifyMu.Lock()
	defer ch.notifyMu.Unlock()

	if ch.IsClosed() {
		close(c)
		return c
	}
	ch.closeListeners = append(ch.closeListeners, c)
	return c
}

// NotifyFlow registers a listener for broker flow changes. Sends do not
// block; use a buffered channel.
func (ch *Channel) NotifyFlow(c chan bool) chan bool {
	ch.notifyMu.Lock()
	defer ch.notifyMu.Unlock()

	if ch.IsClosed() {
		close(c)
		return c
	}
	ch.flowListeners = append(ch.flowListeners, c)
	return c
}
