package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/israelio/rabbit-wire/internal/protocol"
	"github.com/israelio/rabbit-wire/internal/util"
	"github.com/israelio/rabbit-wire/internal/wait"
)

// ErrConfirmsDisabled is returned by confirm waits on a channel that is not
// in confirm mode
var ErrConfirmsDisabled = errors.New("publisher confirms not enabled")

// Confirmation represents a publish confirmation (ack or nack)
type Confirmation struct {
	DeliveryTag uint64
	Ack         bool
}

// ConfirmListener provides a callback-based confirm interface
type ConfirmListener interface {
	HandleAck(deliveryTag uint64, multiple bool)
	HandleNack(deliveryTag uint64, multiple bool)
}

// confirmEvent is one basic.ack or basic.nack with the sequence numbers it
// resolved
type confirmEvent struct {
	tag      uint64
	multiple bool
	ack      bool
	resolved []uint64
}

// confirmManager tracks outstanding publishes after confirm.select.
// Sequence numbers start at 1 and increase by one per publish.
type confirmManager struct {
	ch *Channel

	mu          sync.Mutex
	enabled     bool
	next        uint64
	outstanding []uint64 // ascending
	watchers    map[uint64]*util.Cell[bool]
	nacked      bool
	drained     chan struct{} // closed when outstanding empties

	events *util.Fanout[confirmEvent]
}

func newConfirmManager(ch *Channel) *confirmManager {
	return &confirmManager{
		ch:       ch,
		watchers: make(map[uint64]*util.Cell[bool]),
		events:   util.NewFanout[confirmEvent](),
	}
}

func (cm *confirmManager) enable() {
	cm.mu.Lock()
	cm.enabled = true
	cm.mu.Unlock()
}

func (cm *confirmManager) isEnabled() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.enabled
}

// reserve assigns the next sequence number, or 0 when confirms are off.
// Callers hold publishMu so numbers match wire order.
func (cm *confirmManager) reserve(watch *util.Cell[bool]) uint64 {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.enabled {
		return 0
	}

	cm.next++
	cm.outstanding = append(cm.outstanding, cm.next)
	if cm.drained == nil {
		cm.drained = make(chan struct{})
	}
	if watch != nil {
		cm.watchers[cm.next] = watch
	}
	return cm.next
}

// unreserve gives back the last sequence number after a publish that never
// reached the broker
func (cm *confirmManager) unreserve(seq uint64) {
	if seq == 0 {
		return
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	n := len(cm.outstanding)
	if n == 0 || cm.outstanding[n-1] != seq || cm.next != seq {
		return
	}
	cm.outstanding = cm.outstanding[:n-1]
	cm.next--
	delete(cm.watchers, seq)
	cm.checkDrained()
}

func (cm *confirmManager) resolve(tag uint64, multiple, ack bool) {
	cm.mu.Lock()

	var resolved []uint64
	if multiple {
		i := sort.Search(len(cm.outstanding), func(i int) bool { return cm.outstanding[i] > tag })
		resolved = append(resolved, cm.outstanding[:i]...)
		cm.outstanding = cm.outstanding[i:]
	} else {
		i := sort.Search(len(cm.outstanding), func(i int) bool { return cm.outstanding[i] >= tag })
		if i < len(cm.outstanding) && cm.outstanding[i] == tag {
			resolved = []uint64{tag}
			cm.outstanding = append(cm.outstanding[:i], cm.outstanding[i+1:]...)
		}
	}

	if !ack && len(resolved) > 0 {
		cm.nacked = true
	}
	for _, seq := range resolved {
		if w, ok := cm.watchers[seq]; ok {
			w.Set(ack)
			delete(cm.watchers, seq)
		}
	}
	cm.checkDrained()
	cm.mu.Unlock()

	if len(resolved) == 0 {
		cm.ch.logger.Debug("confirm for unknown delivery tag",
			zap.Uint64("delivery_tag", tag),
			zap.Bool("multiple", multiple))
		return
	}

	for range resolved {
		cm.ch.conn.metrics.ConfirmReceived(ack)
	}
	cm.events.Publish(confirmEvent{tag: tag, multiple: multiple, ack: ack, resolved: resolved})
}

func (cm *confirmManager) checkDrained() {
	if len(cm.outstanding) == 0 && cm.drained != nil {
		close(cm.drained)
		cm.drained = nil
	}
}

// await returns a channel closed once nothing is outstanding, or nil if
// nothing is outstanding now. It also returns and resets the nack flag.
func (cm *confirmManager) await() (<-chan struct{}, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.drained == nil {
		nacked := cm.nacked
		cm.nacked = false
		return nil, nacked
	}
	return cm.drained, false
}

func (cm *confirmManager) takeNacked() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	nacked := cm.nacked
	cm.nacked = false
	return nacked
}

func (cm *confirmManager) shutdown() {
	cm.events.Close()
}

// ConfirmSelect puts the channel in confirm mode
func (ch *Channel) ConfirmSelect(noWait bool) error {
	if _, err := ch.rpc(&protocol.ConfirmSelect{NoWait: noWait}); err != nil {
		return err
	}
	ch.confirms.enable()
	return nil
}

// NotifyPublish registers a channel that receives one Confirmation per
// published message, in sequence order. It must be drained and is closed
// when the channel ends.
func (ch *Channel) NotifyPublish(c chan Confirmation) chan Confirmation {
	ch.confirms.events.Add(func(e confirmEvent) {
		for _, seq := range e.resolved {
			c <- Confirmation{DeliveryTag: seq, Ack: e.ack}
		}
	}, func() { close(c) })
	return c
}

// AddConfirmListener adds a callback-based confirm listener. It sees the
// broker's acks and nacks as sent, including the multiple flag.
func (ch *Channel) AddConfirmListener(listener ConfirmListener) {
	ch.confirms.events.Add(func(e confirmEvent) {
		defer func() {
			if r := recover(); r != nil {
				ch.conn.factory.ErrorHandler.HandleConfirmListenerError(ch, panicError(r))
			}
		}()
		if e.ack {
			listener.HandleAck(e.tag, e.multiple)
		} else {
			listener.HandleNack(e.tag, e.multiple)
		}
	}, nil)
}

// WaitForConfirms blocks until every message published so far is confirmed.
// It reports whether all of them were acked since the previous call.
func (ch *Channel) WaitForConfirms(ctx context.Context, opts ...CallOption) (bool, error) {
	if !ch.confirms.isEnabled() {
		return false, ErrConfirmsDisabled
	}

	drained, nacked := ch.confirms.await()
	if drained == nil {
		return !nacked, nil
	}

	cfg := callConfig{mode: ch.conn.factory.WaitMode}
	for _, opt := range opts {
		opt(&cfg)
	}

	w := wait.Waiter[struct{}]{
		Ready:      drained,
		Lost:       ch.closed,
		Cause:      ch.cause,
		Interrupts: ch.conn.factory.Interrupts,
		Mode:       cfg.mode,
		Clock:      ch.conn.clock,
	}
	if _, err := w.Wait(ctx, time.Time{}); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			ch.conn.metrics.TimeoutOccurred("confirm.wait")
			return false, &TimeoutError{Op: "confirm.wait", Err: err}
		}
		return false, err
	}
	return !ch.confirms.takeNacked(), nil
}

// PublishWithConfirm publishes a message and waits for its own confirm
func (ch *Channel) PublishWithConfirm(ctx context.Context, exchange, routingKey string, mandatory, immediate bool, msg Publishing) error {
	if !ch.confirms.isEnabled() {
		return ErrConfirmsDisabled
	}

	watch := util.NewCell[bool]()
	seq, err := ch.publish(ctx, exchange, routingKey, mandatory, immediate, msg, watch)
	if err != nil {
		return err
	}

	w := wait.Waiter[bool]{
		Ready:      watch.C(),
		Lost:       ch.closed,
		Cause:      ch.cause,
		Interrupts: ch.conn.factory.Interrupts,
		Mode:       ch.conn.factory.WaitMode,
		Clock:      ch.conn.clock,
	}
	ack, err := w.Wait(ctx, time.Time{})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			ch.conn.metrics.TimeoutOccurred("confirm.wait")
			return &TimeoutError{Op: "confirm.wait", Err: err}
		}
		return err
	}
	if !ack {
		return fmt.Errorf("message %d nacked by broker", seq)
	}
	return nil
}
