package util

import "sync"

// Mailbox is an unbounded FIFO with one blocking receiver. Push never
// blocks, so a slow receiver cannot stall the producer.
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	signal chan struct{}
}

// NewMailbox creates an empty mailbox
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{signal: make(chan struct{}, 1)}
}

// Push appends v. It reports false once the mailbox is closed.
func (m *Mailbox[T]) Push(v T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, v)
	m.mu.Unlock()

	m.wake()
	return true
}

// Close stops accepting items. Items already queued can still be received.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.wake()
}

// Receive blocks until an item is available or stop is closed. It returns
// false when stop fires or when the mailbox is closed and drained.
func (m *Mailbox[T]) Receive(stop <-chan struct{}) (T, bool) {
	var zero T
	for {
		m.mu.Lock()
		if len(m.items) > 0 {
			v := m.items[0]
			m.items[0] = zero
			m.items = m.items[1:]
			m.mu.Unlock()
			return v, true
		}
		closed := m.closed
		m.mu.Unlock()

		if closed {
			return zero, false
		}

		select {
		case <-m.signal:
		case <-stop:
			return zero, false
		}
	}
}

// Len returns the number of queued items
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Mailbox[T]) wake() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}
