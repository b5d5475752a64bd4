package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/israelio/rabbit-wire/internal/frame"
	"github.com/israelio/rabbit-wire/internal/heartbeat"
	"github.com/israelio/rabbit-wire/internal/protocol"
	"github.com/israelio/rabbit-wire/internal/util"
	"github.com/israelio/rabbit-wire/internal/wait"
)

// ConnectionState represents the current state of a connection
type ConnectionState int32

const (
	StateOpening ConnectionState = iota
	StateOpen
	StateClosing
	StateClosed
)

// String returns a string representation of the connection state
func (cs ConnectionState) String() string {
	switch cs {
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// errStopReading ends the receive loop without tearing the connection down
var errStopReading = errors.New("stop reading")

// receiveLoopStopWait bounds how long Close waits for the receive loop to
// notice the released transport
const receiveLoopStopWait = 2 * time.Second

// Connection represents an AMQP connection
type Connection struct {
	factory   *ConnectionFactory
	transport Transport
	logger    *zap.Logger
	metrics   MetricsCollector
	clock     clock.Clock

	// Frame I/O. The receive loop is the only reader after the handshake.
	reader *frame.Reader
	writer *frame.Writer

	// Negotiated in connection.tune
	channelMax        uint16
	frameMax          uint32
	heartbeatInterval time.Duration
	serverProperties  Table
	heartbeat         *heartbeat.Tracker

	state atomic.Int32

	channelMux sync.RWMutex
	channels   map[uint16]*Channel
	ids        *util.IDAllocator

	closeOk *util.Cell[struct{}]

	// lost is closed by teardown; lostErr and transportErr are set before.
	lost         chan struct{}
	lostOnce     sync.Once
	lostErr      error
	transportErr error
	done         chan struct{}

	blocked atomic.Bool

	notifyMu         sync.Mutex
	closeListeners   []chan *Error
	blockedListeners []chan BlockedNotification

	listenerMux sync.RWMutex
	listeners   []ConnectionListener
}

// BlockedNotification represents a connection blocked/unblocked event
type BlockedNotification struct {
	Blocked bool
	Reason  string
}

// ConnectionListener receives connection lifecycle events
type ConnectionListener interface {
	OnConnectionCreated(conn *Connection)
	OnConnectionClosed(conn *Connection, err error)
	OnConnectionBlocked(conn *Connection, reason string)
	OnConnectionUnblocked(conn *Connection)
}

func newConnection(cf *ConnectionFactory, transport Transport) *Connection {
	c := &Connection{
		factory:   cf,
		transport: transport,
		logger:    cf.Logger,
		metrics:   cf.Metrics,
		clock:     cf.Clock,
		reader:    frame.NewReader(transport, protocol.FrameMinSize),
		writer:    frame.NewWriter(transport, protocol.FrameMinSize),
		heartbeat: heartbeat.New(cf.Clock, 0),
		channels:  make(map[uint16]*Channel),
		closeOk:   util.NewCell[struct{}](),
		lost:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	c.state.Store(int32(StateOpening))
	return c
}

// start launches the receive loop and the heartbeat sender
func (c *Connection) start() {
	go c.receiveLoop()
	go c.heartbeat.Run(c.lost, c.sendHeartbeat, c.peerSilent)

	c.metrics.ConnectionCreated()
	c.notifyListeners(func(l ConnectionListener) {
		l.OnConnectionCreated(c)
	})
}

func (c *Connection) receiveLoop() {
	defer close(c.done)

	for {
		if rt := c.heartbeat.ReadTimeout(); rt > 0 {
			_ = c.transport.SetReadDeadline(time.Now().Add(rt))
		}

		f, err := c.reader.ReadFrame()
		if err != nil {
			c.readFailed(err)
			return
		}

		c.heartbeat.Received()
		c.metrics.FrameReceived()
		if ce := c.logger.Check(zap.DebugLevel, "frame received"); ce != nil {
			ce.Write(zap.Stringer("frame", f))
		}

		if err := c.dispatch(f); err != nil {
			if !errors.Is(err, errStopReading) {
				c.fail(err)
			}
			return
		}
	}
}

func (c *Connection) readFailed(err error) {
	select {
	case <-c.lost:
		return
	default:
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() && c.heartbeat.Enabled() {
		c.metrics.HeartbeatMissed()
		err = fmt.Errorf("%w: no frame for %v", ErrMissedHeartbeats, c.heartbeat.ReadTimeout())
	}
	if errors.Is(err, ErrFraming) || errors.Is(err, ErrProtocolMismatch) {
		c.fail(err)
		return
	}

	c.logger.Error("connection lost", zap.Error(err))
	c.teardown(&ConnectionLostError{Cause: err})
}

// fail tears the connection down after a fatal protocol error, telling the
// broker why if the writer is free.
func (c *Connection) fail(err error) {
	code := protocol.ReplyInternalError
	switch {
	case errors.Is(err, ErrFraming):
		code = protocol.ReplyFrameError
	case errors.Is(err, ErrProtocolViolation):
		code = protocol.ReplyUnexpectedFrame
	case errors.Is(err, ErrProtocolMismatch):
		code = protocol.ReplySyntaxError
	}

	if c.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
		text := err.Error()
		if len(text) > 255 {
			text = text[:255]
		}
		if f, ferr := frame.NewMethodFrame(0, &protocol.ConnectionClose{ReplyCode: uint16(code), ReplyText: text}); ferr == nil {
			_, _ = c.writer.TryWriteFrames(c.writeDeadline(context.Background()), f)
		}
	}

	c.logger.Error("connection failed", zap.Int("reply_code", code), zap.Error(err))
	c.teardown(&ConnectionLostError{Cause: err})
}

// dispatch routes one frame: channel 0 to the connection, everything else to
// the owning channel.
func (c *Connection) dispatch(f *frame.Frame) error {
	if f.Type == protocol.FrameHeartbeat {
		if f.ChannelID != 0 {
			return fmt.Errorf("%w: heartbeat on channel %d", ErrProtocolViolation, f.ChannelID)
		}
		return nil
	}

	if f.ChannelID == 0 {
		return c.dispatchConnection(f)
	}

	c.channelMux.RLock()
	ch := c.channels[f.ChannelID]
	c.channelMux.RUnlock()

	if ch == nil {
		return fmt.Errorf("%w: frame for unknown channel %d", ErrProtocolViolation, f.ChannelID)
	}
	return ch.handleFrame(f)
}

func (c *Connection) dispatchConnection(f *frame.Frame) error {
	m, err := f.ParseMethod()
	if err != nil {
		return err
	}

	switch m := m.(type) {
	case *protocol.ConnectionClose:
		c.state.Store(int32(StateClosing))
		if closeOk, err := frame.NewMethodFrame(0, &protocol.ConnectionCloseOk{}); err == nil {
			_ = c.writer.WriteFrames(c.writeDeadline(context.Background()), closeOk)
		}
		srvErr := newServerError(m.ReplyCode, m.ReplyText, m.ClassID, m.MethodID)
		c.logger.Error("connection closed by broker", zap.Error(srvErr))
		c.teardown(&ConnectionLostError{Cause: srvErr})
		return errStopReading

	case *protocol.ConnectionCloseOk:
		if c.GetState() != StateClosing {
			return fmt.Errorf("%w: connection.close-ok without connection.close", ErrProtocolViolation)
		}
		c.closeOk.Set(struct{}{})
		return errStopReading

	case *protocol.ConnectionBlocked:
		c.setBlocked(true, m.Reason)
		return nil

	case *protocol.ConnectionUnblocked:
		c.setBlocked(false, "")
		return nil

	default:
		return fmt.Errorf("%w: %s on channel 0", ErrProtocolViolation, protocol.MethodName(m))
	}
}

func (c *Connection) setBlocked(blocked bool, reason string) {
	c.blocked.Store(blocked)

	if blocked {
		c.logger.Warn("connection blocked by broker", zap.String("reason", reason))
	} else {
		c.logger.Info("connection unblocked")
	}

	n := BlockedNotification{Blocked: blocked, Reason: reason}
	c.notifyMu.Lock()
	for _, l := range c.blockedListeners {
		select {
		case l <- n:
		default:
		}
	}
	c.notifyMu.Unlock()

	c.notifyListeners(func(l ConnectionListener) {
		if blocked {
			l.OnConnectionBlocked(c, reason)
		} else {
			l.OnConnectionUnblocked(c)
		}
	})

	if h := c.factory.BlockedHandler; h != nil {
		if blocked {
			h.OnBlocked(c, reason)
		} else {
			h.OnUnblocked(c)
		}
	}
}

// send writes frames as one unit under the write timeout
func (c *Connection) send(op string, frames ...*frame.Frame) error {
	return c.sendContext(context.Background(), op, frames...)
}

// sendContext is send with the write deadline narrowed by ctx.
//
// A timeout before any byte was written leaves the connection usable and
// returns *TimeoutError. A torn write or any other transport failure tears
// the connection down.
func (c *Connection) sendContext(ctx context.Context, op string, frames ...*frame.Frame) error {
	select {
	case <-c.lost:
		return c.lostErr
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := c.writer.WriteFrames(c.writeDeadline(ctx), frames...)
	return c.afterWrite(op, len(frames), err)
}

func (c *Connection) afterWrite(op string, n int, err error) error {
	if err == nil {
		c.heartbeat.Sent()
		for i := 0; i < n; i++ {
			c.metrics.FrameSent()
		}
		return nil
	}

	var we *frame.WriteError
	if !errors.As(err, &we) {
		return err
	}

	if we.Timeout() && !we.Partial() {
		c.metrics.TimeoutOccurred(op)
		c.logger.Warn("write timed out",
			zap.String("op", op),
			zap.Duration("timeout", c.factory.WriteTimeout))
		return &TimeoutError{Op: op, Timeout: c.factory.WriteTimeout, Err: err}
	}

	lost := &ConnectionLostError{Cause: err}
	c.logger.Error("write failed", zap.String("op", op), zap.Error(err))
	c.teardown(lost)

	if we.Timeout() {
		c.metrics.TimeoutOccurred(op)
		return &TimeoutError{Op: op, Timeout: c.factory.WriteTimeout, Partial: true, Err: lost}
	}
	return lost
}

func (c *Connection) writeDeadline(ctx context.Context) time.Time {
	var deadline time.Time
	if c.factory.WriteTimeout > 0 {
		deadline = time.Now().Add(c.factory.WriteTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	return deadline
}

// sendHeartbeat is called by the tracker when nothing was written for half an
// interval. It gives way to any write in progress.
func (c *Connection) sendHeartbeat() {
	attempted, err := c.writer.TryWriteFrames(c.writeDeadline(context.Background()), frame.NewHeartbeatFrame())
	if !attempted {
		return
	}
	if err := c.afterWrite("heartbeat", 1, err); err != nil {
		c.logger.Debug("heartbeat not sent", zap.Error(err))
	}
}

func (c *Connection) peerSilent(silence time.Duration) {
	c.metrics.HeartbeatMissed()
	c.logger.Error("peer missed heartbeats", zap.Duration("silence", silence))
	c.teardown(&ConnectionLostError{Cause: fmt.Errorf("%w: silent for %v", ErrMissedHeartbeats, silence)})
}

// cause reports why the connection ended. Valid once lost is closed.
func (c *Connection) cause() error {
	return c.lostErr
}

// OpenChannel allocates a channel id and opens a channel. If the broker does
// not answer in time the channel is returned still opening, together with a
// *TimeoutError; the caller may call Open again or Close it.
func (c *Connection) OpenChannel(ctx context.Context) (*Channel, error) {
	if c.GetState() != StateOpen {
		return nil, ErrClosed
	}

	id, ok := c.ids.Allocate()
	if !ok {
		return nil, fmt.Errorf("channel limit reached: %d", c.channelMax)
	}

	ch := newChannel(c, id)

	c.channelMux.Lock()
	if c.GetState() != StateOpen {
		c.channelMux.Unlock()
		c.ids.Release(id)
		return nil, ErrClosed
	}
	c.channels[id] = ch
	c.channelMux.Unlock()

	if err := ch.Open(ctx); err != nil {
		var te *TimeoutError
		if errors.As(err, &te) {
			return ch, err
		}
		c.forget(ch)
		return nil, err
	}

	c.metrics.ChannelCreated()
	return ch, nil
}

// NewChannel opens a channel without a context
func (c *Connection) NewChannel() (*Channel, error) {
	return c.OpenChannel(context.Background())
}

// forget unregisters a channel and frees its id
func (c *Connection) forget(ch *Channel) {
	c.channelMux.Lock()
	defer c.channelMux.Unlock()

	if c.channels[ch.id] == ch {
		delete(c.channels, ch.id)
		c.ids.Release(ch.id)
	}
}

// Close gracefully closes the connection
func (c *Connection) Close() error {
	return c.CloseWithTimeout(c.factory.CloseTimeout)
}

// CloseWithTimeout sends connection.close and waits up to d for close-ok. The
// transport is released whatever happens; calling it again is a no-op.
func (c *Connection) CloseWithTimeout(d time.Duration) error {
	return c.closeWith(protocol.ReplySuccess, "connection closed", d)
}

// CloseWithCode closes the connection with a specific reply code and text
func (c *Connection) CloseWithCode(code int, text string) error {
	return c.closeWith(code, text, c.factory.CloseTimeout)
}

func (c *Connection) closeWith(code int, text string, timeout time.Duration) error {
	if !c.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
		return nil
	}
	c.logger.Info("closing connection", zap.Int("reply_code", code))

	f, err := frame.NewMethodFrame(0, &protocol.ConnectionClose{ReplyCode: uint16(code), ReplyText: text})
	if err == nil {
		err = c.send("connection.close", f)
	}
	if err == nil {
		w := wait.Waiter[struct{}]{
			Ready: c.closeOk.C(),
			Lost:  c.lost,
			Cause: c.cause,
			Clock: c.clock,
		}
		_, err = w.Wait(context.Background(), wait.Deadline(c.clock, timeout))
		switch {
		case errors.Is(err, wait.ErrTimeout):
			c.metrics.TimeoutOccurred("connection.close")
			c.logger.Warn("no connection.close-ok before timeout", zap.Duration("timeout", timeout))
			err = &TimeoutError{Op: "connection.close", Timeout: timeout, Err: err}
		case errors.Is(err, ErrConnectionLost):
			err = nil
		}
	}

	c.teardown(&ConnectionLostError{Cause: ErrClosed})

	select {
	case <-c.done:
	case <-c.clock.After(receiveLoopStopWait):
		c.logger.Warn("receive loop did not stop after close", zap.Duration("waited", receiveLoopStopWait))
	}

	return multierr.Append(err, c.transportErr)
}

// teardown releases the transport, fails every outstanding wait with cause
// and shuts every channel down. Only the first call has an effect.
func (c *Connection) teardown(cause error) {
	c.lostOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		c.lostErr = cause

		if err := c.transport.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.transportErr = fmt.Errorf("close transport: %w", err)
		}
		close(c.lost)

		c.channelMux.Lock()
		channels := c.channels
		c.channels = make(map[uint16]*Channel)
		c.channelMux.Unlock()

		for _, ch := range channels {
			ch.shutdown(cause, ChannelStateClosed)
			c.ids.Release(ch.id)
		}

		lost, _ := cause.(*ConnectionLostError)
		clean := lost != nil && lost.Cause == error(ErrClosed)
		var amqpErr *Error
		if !clean && !errors.As(cause, &amqpErr) {
			amqpErr = NewError(protocol.ReplyConnectionForced, cause.Error(), false)
		}

		c.notifyMu.Lock()
		for _, l := range c.closeListeners {
			if amqpErr != nil {
				select {
				case l <- amqpErr:
				default:
				}
			}
			close(l)
		}
		c.closeListeners = nil
		for _, l := range c.blockedListeners {
			close(l)
		}
		c.blockedListeners = nil
		c.notifyMu.Unlock()

		c.metrics.ConnectionClosed()
		c.notifyListeners(func(l ConnectionListener) {
			l.OnConnectionClosed(c, cause)
		})

		if clean {
			c.logger.Info("connection closed")
			return
		}
		c.metrics.ConnectionError(cause)
		c.factory.ErrorHandler.HandleConnectionError(c, cause)
	})
}

// GetChannelCount returns the current number of registered channels
func (c *Connection) GetChannelCount() int {
	c.channelMux.RLock()
	defer c.channelMux.RUnlock()
	return len(c.channels)
}

// IsClosed returns whether the connection is closed
func (c *Connection) IsClosed() bool {
	return c.GetState() == StateClosed
}

// GetState returns the current connection state
func (c *Connection) GetState() ConnectionState {
	return ConnectionState(c.state.Load())
}

// IsBlocked returns whether the connection is currently blocked
func (c *Connection) IsBlocked() bool {
	return c.blocked.Load()
}

// NotifyClose registers a listener for connection closure. The channel
// receives the error, if any, and is then closed. It should be buffered.
func (c *Connection) NotifyClose(ch chan *Error) chan *Error {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	select {
	case <-c.lost:
		close(ch)
	default:
		c.closeListeners = append(c.closeListeners, ch)
	}
	return ch
}

// NotifyBlocked registers a listener for connection blocked/unblocked
// events. Events are dropped when the channel is full.
func (c *Connection) NotifyBlocked(ch chan BlockedNotification) chan BlockedNotification {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	select {
	case <-c.lost:
		close(ch)
	default:
		c.blockedListeners = append(c.blockedListeners, ch)
	}
	return ch
}

// AddConnectionListener adds a connection lifecycle listener
func (c *Connection) AddConnectionListener(listener ConnectionListener) {
	c.listenerMux.Lock()
	defer c.listenerMux.Unlock()
	c.listeners = append(c.listeners, listener)
}

// RemoveConnectionListener removes a connection listener
func (c *Connection) RemoveConnectionListener(listener ConnectionListener) {
	c.listenerMux.Lock()
	defer c.listenerMux.Unlock()

	for i, l := range c.listeners {
		if l == listener {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return
		}
	}
}

func (c *Connection) notifyListeners(fn func(ConnectionListener)) {
	c.listenerMux.RLock()
	defer c.listenerMux.RUnlock()

	for _, listener := range c.listeners {
		fn(listener)
	}
}

// GetChannelMax returns the negotiated maximum number of channels
func (c *Connection) GetChannelMax() uint16 {
	return c.channelMax
}

// GetFrameMax returns the negotiated maximum frame size
func (c *Connection) GetFrameMax() uint32 {
	return c.frameMax
}

// GetHeartbeat returns the negotiated heartbeat interval
func (c *Connection) GetHeartbeat() time.Duration {
	return c.heartbeatInterval
}

// ServerProperties returns the properties the broker sent in connection.start
func (c *Connection) ServerProperties() Table {
	return c.serverProperties
}
