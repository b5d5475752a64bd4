// Package wait blocks a caller until a reply, a failure, a deadline or a
// context cancellation, whichever comes first.
//
// A deadline is absolute. Every pass through the loop recomputes the
// remaining time from it, so a wait that is interrupted and resumed any
// number of times still ends at the same instant.
package wait

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/benbjohnson/clock"
)

// Mode selects what an interrupt does to a blocked wait.
type Mode int

const (
	// Interruptible waits absorb interrupts and keep waiting until the
	// original deadline.
	Interruptible Mode = iota
	// Uninterruptible waits return ErrInterrupted on the first interrupt.
	Uninterruptible
)

func (m Mode) String() string {
	switch m {
	case Interruptible:
		return "interruptible"
	case Uninterruptible:
		return "uninterruptible"
	default:
		return "unknown"
	}
}

// ParseMode parses "interruptible" or "uninterruptible"
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "interruptible":
		return Interruptible, nil
	case "uninterruptible":
		return Uninterruptible, nil
	default:
		return Interruptible, errors.New("wait: unknown mode " + s)
	}
}

var (
	// ErrTimeout is returned when the deadline passes first.
	ErrTimeout = errors.New("wait: deadline exceeded")
	// ErrInterrupted is returned by an Uninterruptible wait on interrupt.
	ErrInterrupted = errors.New("wait: interrupted")
)

// Waiter describes one blocking wait. Ready delivers the value being waited
// for. When Lost is closed the wait fails with Cause().
type Waiter[T any] struct {
	Ready      <-chan T
	Lost       <-chan struct{}
	Cause      func() error
	Interrupts <-chan os.Signal
	Mode       Mode
	Clock      clock.Clock

	// OnInterrupt, if set, observes every interrupt, absorbed or not.
	OnInterrupt func(os.Signal)
}

// Wait blocks until one of the outcomes described on Waiter. A zero deadline
// means no deadline.
func (w Waiter[T]) Wait(ctx context.Context, deadline time.Time) (T, error) {
	var zero T

	clk := w.Clock
	if clk == nil {
		clk = clock.New()
	}

	for {
		// A reply that is already there wins over an expired deadline.
		select {
		case v := <-w.Ready:
			return v, nil
		default:
		}

		var timeout <-chan time.Time
		var timer *clock.Timer
		if !deadline.IsZero() {
			remaining := deadline.Sub(clk.Now())
			if remaining <= 0 {
				return zero, ErrTimeout
			}
			timer = clk.Timer(remaining)
			timeout = timer.C
		}

		select {
		case v := <-w.Ready:
			stopTimer(timer)
			return v, nil

		case <-w.Lost:
			stopTimer(timer)
			return zero, w.cause()

		case <-ctx.Done():
			stopTimer(timer)
			return zero, ctx.Err()

		case <-timeout:
			return zero, ErrTimeout

		case sig := <-w.Interrupts:
			stopTimer(timer)
			if w.OnInterrupt != nil {
				w.OnInterrupt(sig)
			}
			if w.Mode == Uninterruptible {
				return zero, ErrInterrupted
			}
		}
	}
}

func (w Waiter[T]) cause() error {
	if w.Cause != nil {
		if err := w.Cause(); err != nil {
			return err
		}
	}
	return errors.New("wait: lost")
}

func stopTimer(t *clock.Timer) {
	if t != nil {
		t.Stop()
	}
}

// Deadline returns now+timeout, or the zero time when timeout is not positive
func Deadline(clk clock.Clock, timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	if clk == nil {
		clk = clock.New()
	}
	return clk.Now().Add(timeout)
}
