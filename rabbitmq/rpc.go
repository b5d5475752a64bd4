package rabbitmq

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/israelio/rabbit-wire/internal/frame"
	"github.com/israelio/rabbit-wire/internal/protocol"
	"github.com/israelio/rabbit-wire/internal/util"
	"github.com/israelio/rabbit-wire/internal/wait"
)

// WaitMode decides what an interrupt does to a synchronous wait
type WaitMode = wait.Mode

const (
	// WaitInterruptible absorbs interrupts and keeps waiting against the same deadline
	WaitInterruptible = wait.Interruptible
	// WaitUninterruptible fails the wait with ErrInterrupted
	WaitUninterruptible = wait.Uninterruptible
)

type methodKey struct {
	class, method uint16
}

func keyOf(m protocol.Method) methodKey {
	c, id := m.ID()
	return methodKey{c, id}
}

// syncReplies lists the acceptable replies of every synchronous request.
// Methods missing here are sent without waiting.
var syncReplies = map[methodKey][]methodKey{
	{protocol.ClassChannel, protocol.MethodChannelOpen}:  {{protocol.ClassChannel, protocol.MethodChannelOpenOk}},
	{protocol.ClassChannel, protocol.MethodChannelFlow}:  {{protocol.ClassChannel, protocol.MethodChannelFlowOk}},
	{protocol.ClassChannel, protocol.MethodChannelClose}: {{protocol.ClassChannel, protocol.MethodChannelCloseOk}},

	{protocol.ClassExchange, protocol.MethodExchangeDeclare}: {{protocol.ClassExchange, protocol.MethodExchangeDeclareOk}},
	{protocol.ClassExchange, protocol.MethodExchangeDelete}:  {{protocol.ClassExchange, protocol.MethodExchangeDeleteOk}},
	{protocol.ClassExchange, protocol.MethodExchangeBind}:    {{protocol.ClassExchange, protocol.MethodExchangeBindOk}},
	{protocol.ClassExchange, protocol.MethodExchangeUnbind}:  {{protocol.ClassExchange, protocol.MethodExchangeUnbindOk}},

	{protocol.ClassQueue, protocol.MethodQueueDeclare}: {{protocol.ClassQueue, protocol.MethodQueueDeclareOk}},
	{protocol.ClassQueue, protocol.MethodQueueBind}:    {{protocol.ClassQueue, protocol.MethodQueueBindOk}},
	{protocol.ClassQueue, protocol.MethodQueuePurge}:   {{protocol.ClassQueue, protocol.MethodQueuePurgeOk}},
	{protocol.ClassQueue, protocol.MethodQueueDelete}:  {{protocol.ClassQueue, protocol.MethodQueueDeleteOk}},
	{protocol.ClassQueue, protocol.MethodQueueUnbind}:  {{protocol.ClassQueue, protocol.MethodQueueUnbindOk}},

	{protocol.ClassBasic, protocol.MethodBasicQos}:     {{protocol.ClassBasic, protocol.MethodBasicQosOk}},
	{protocol.ClassBasic, protocol.MethodBasicConsume}: {{protocol.ClassBasic, protocol.MethodBasicConsumeOk}},
	{protocol.ClassBasic, protocol.MethodBasicCancel}:  {{protocol.ClassBasic, protocol.MethodBasicCancelOk}},
	{protocol.ClassBasic, protocol.MethodBasicRecover}: {{protocol.ClassBasic, protocol.MethodBasicRecoverOk}},
	{protocol.ClassBasic, protocol.MethodBasicGet}: {
		{protocol.ClassBasic, protocol.MethodBasicGetOk},
		{protocol.ClassBasic, protocol.MethodBasicGetEmpty},
	},

	{protocol.ClassTx, protocol.MethodTxSelect}:   {{protocol.ClassTx, protocol.MethodTxSelectOk}},
	{protocol.ClassTx, protocol.MethodTxCommit}:   {{protocol.ClassTx, protocol.MethodTxCommitOk}},
	{protocol.ClassTx, protocol.MethodTxRollback}: {{protocol.ClassTx, protocol.MethodTxRollbackOk}},

	{protocol.ClassConfirm, protocol.MethodConfirmSelect}: {{protocol.ClassConfirm, protocol.MethodConfirmSelectOk}},
}

// expectedReplies returns the replies m waits for, or nil if m is sent
// without waiting
func expectedReplies(m protocol.Method) []methodKey {
	if protocol.IsNoWait(m) {
		return nil
	}
	return syncReplies[keyOf(m)]
}

// reply is what a synchronous call receives: the reply method and, for
// basic.get-ok, its content
type reply struct {
	method protocol.Method
	msg    *frame.Message
}

// pendingCall is the single outstanding synchronous request of a channel
type pendingCall struct {
	op     string
	expect []methodKey
	slot   *util.Cell[reply]
}

func (p *pendingCall) matches(m protocol.Method) bool {
	k := keyOf(m)
	for _, e := range p.expect {
		if e == k {
			return true
		}
	}
	return false
}

// CallOption adjusts a single synchronous call
type CallOption func(*callConfig)

type callConfig struct {
	mode WaitMode
}

// WithWaitMode sets the wait mode of one call
func WithWaitMode(mode WaitMode) CallOption {
	return func(cc *callConfig) {
		cc.mode = mode
	}
}

// Uninterruptible makes an interrupt fail the call with ErrInterrupted
func Uninterruptible() CallOption {
	return WithWaitMode(WaitUninterruptible)
}

// rpcState holds the reply slot of the outstanding call and the requests
// whose waits expired. Replies arrive in request order, so the first reply
// matching the oldest expired request belongs to it.
type rpcState struct {
	mu      sync.Mutex
	pending *pendingCall
	stale   []*pendingCall
}

func (rs *rpcState) set(p *pendingCall) {
	rs.mu.Lock()
	rs.pending = p
	rs.mu.Unlock()
}

// clear drops p after it was answered or never reached the broker
func (rs *rpcState) clear(p *pendingCall) {
	rs.mu.Lock()
	if rs.pending == p {
		rs.pending = nil
	}
	rs.mu.Unlock()
}

// expire drops p after its wait failed. A reply that raced the failure is
// returned; otherwise p is kept as stale so its late reply is recognised.
func (rs *rpcState) expire(p *pendingCall) (reply, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.pending == p {
		rs.pending = nil
	}
	select {
	case r := <-p.slot.C():
		return r, true
	default:
		rs.stale = append(rs.stale, p)
		return reply{}, false
	}
}

// route hands m to its waiter. It returns the stale request m answers, if
// any, and whether m was consumed at all.
func (rs *rpcState) route(m protocol.Method, msg *frame.Message) (*pendingCall, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if len(rs.stale) > 0 && rs.stale[0].matches(m) {
		late := rs.stale[0]
		rs.stale[0] = nil
		rs.stale = rs.stale[1:]
		return late, true
	}

	if rs.pending != nil && rs.pending.matches(m) {
		rs.pending.slot.Set(reply{method: m, msg: msg})
		return nil, true
	}
	return nil, false
}

// Invoke sends m and, when m is synchronous, waits up to timeout for its
// reply. A zero timeout waits until the reply, a close or ctx.
//
// The wait ends with the reply, an *Error when the broker closes the
// channel, a *ConnectionLostError when the connection fails, or a
// *TimeoutError. After a timeout the outcome is unknown; the late reply is
// discarded when it arrives.
func (ch *Channel) Invoke(ctx context.Context, m protocol.Method, timeout time.Duration, opts ...CallOption) (protocol.Method, error) {
	r, err := ch.call(ctx, m, timeout, opts...)
	return r.method, err
}

// rpc is Invoke with the default read timeout
func (ch *Channel) rpc(m protocol.Method) (reply, error) {
	return ch.call(context.Background(), m, ch.conn.factory.ReadTimeout)
}

func (ch *Channel) call(ctx context.Context, m protocol.Method, timeout time.Duration, opts ...CallOption) (reply, error) {
	if len(expectedReplies(m)) == 0 {
		if err := ch.usable(m); err != nil {
			return reply{}, err
		}
		return reply{}, ch.sendMethod(ctx, protocol.MethodName(m), m)
	}

	ch.rpcMu.Lock()
	defer ch.rpcMu.Unlock()
	return ch.callLocked(ctx, m, timeout, opts...)
}

// callLocked sends a synchronous request and waits for its reply. The
// caller holds rpcMu.
func (ch *Channel) callLocked(ctx context.Context, m protocol.Method, timeout time.Duration, opts ...CallOption) (reply, error) {
	op := protocol.MethodName(m)

	cfg := callConfig{mode: ch.conn.factory.WaitMode}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := ch.usable(m); err != nil {
		return reply{}, err
	}

	p := &pendingCall{op: op, expect: expectedReplies(m), slot: util.NewCell[reply]()}
	ch.rpcState.set(p)

	if err := ch.sendMethod(ctx, op, m); err != nil {
		ch.rpcState.clear(p)
		return reply{}, err
	}

	w := wait.Waiter[reply]{
		Ready:      p.slot.C(),
		Lost:       ch.closed,
		Cause:      ch.cause,
		Interrupts: ch.conn.factory.Interrupts,
		Mode:       cfg.mode,
		Clock:      ch.conn.clock,
		OnInterrupt: func(sig os.Signal) {
			ch.logger.Info("interrupt during wait",
				zap.String("op", op),
				zap.Stringer("signal", sig),
				zap.Stringer("mode", cfg.mode))
		},
	}
	r, err := w.Wait(ctx, wait.Deadline(ch.conn.clock, timeout))
	if err == nil {
		ch.rpcState.clear(p)
		return r, nil
	}
	if r, ok := ch.rpcState.expire(p); ok {
		return r, nil
	}

	switch {
	case errors.Is(err, wait.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		ch.conn.metrics.TimeoutOccurred(op)
		ch.logger.Warn("no reply before timeout", zap.String("op", op), zap.Duration("timeout", timeout))
		return reply{}, &TimeoutError{Op: op, Timeout: timeout, Err: err}
	default:
		return reply{}, err
	}
}

// usable checks that the channel state allows sending m
func (ch *Channel) usable(m protocol.Method) error {
	switch ch.GetState() {
	case ChannelStateOpen:
		return nil
	case ChannelStateOpening:
		if protocol.Is(m, protocol.ClassChannel, protocol.MethodChannelOpen) ||
			protocol.Is(m, protocol.ClassChannel, protocol.MethodChannelClose) {
			return nil
		}
	case ChannelStateClosing:
		if protocol.Is(m, protocol.ClassChannel, protocol.MethodChannelClose) ||
			protocol.Is(m, protocol.ClassChannel, protocol.MethodChannelCloseOk) {
			return nil
		}
	}

	select {
	case <-ch.closed:
		return ch.cause()
	default:
		return ErrChannelClosed
	}
}

func (ch *Channel) sendMethod(ctx context.Context, op string, m protocol.Method) error {
	f, err := frame.NewMethodFrame(ch.id, m)
	if err != nil {
		return err
	}
	return ch.conn.sendContext(ctx, op, f)
}
