package util

import "sync"

// Fanout delivers published values, in order, to every registered sink from
// a single goroutine. Publish never blocks; a slow sink delays only later
// deliveries, never the publisher.
type Fanout[T any] struct {
	mu      sync.Mutex
	start   sync.Once
	mailbox *Mailbox[T]
	sinks   []sink[T]
	closed  bool
	done    chan struct{}
}

type sink[T any] struct {
	deliver func(T)
	finish  func()
}

// NewFanout creates a fanout with no sinks
func NewFanout[T any]() *Fanout[T] {
	return &Fanout[T]{
		mailbox: NewMailbox[T](),
		done:    make(chan struct{}),
	}
}

// Add registers a sink. finish, if not nil, runs once after the last
// delivery, or immediately when the fanout is already closed.
func (f *Fanout[T]) Add(deliver func(T), finish func()) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		if finish != nil {
			finish()
		}
		return
	}
	f.sinks = append(f.sinks, sink[T]{deliver: deliver, finish: finish})
	f.mu.Unlock()

	f.start.Do(func() { go f.run() })
}

// Publish queues v for delivery. It reports false when there is no sink or
// the fanout is closed.
func (f *Fanout[T]) Publish(v T) bool {
	f.mu.Lock()
	n := len(f.sinks)
	f.mu.Unlock()

	if n == 0 {
		return false
	}
	return f.mailbox.Push(v)
}

// Close stops accepting values. Queued values are still delivered, then
// every sink is finished.
func (f *Fanout[T]) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	f.mailbox.Close()
	f.start.Do(func() { go f.run() })
}

// Done is closed once every sink has been finished
func (f *Fanout[T]) Done() <-chan struct{} {
	return f.done
}

func (f *Fanout[T]) run() {
	defer close(f.done)

	for {
		v, ok := f.mailbox.Receive(nil)
		if !ok {
			break
		}

		f.mu.Lock()
		sinks := append([]sink[T](nil), f.sinks...)
		f.mu.Unlock()

		for _, s := range sinks {
			s.deliver(v)
		}
	}

	f.mu.Lock()
	sinks := f.sinks
	f.sinks = nil
	f.mu.Unlock()

	for _, s := range sinks {
		if s.finish != nil {
			s.finish()
		}
	}
}
