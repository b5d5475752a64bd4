package util

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailboxFIFO(t *testing.T) {
	m := NewMailbox[int]()
	for i := 0; i < 5; i++ {
		require.True(t, m.Push(i))
	}
	assert.Equal(t, 5, m.Len())

	for i := 0; i < 5; i++ {
		v, ok := m.Receive(nil)
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.Zero(t, m.Len())
}

func TestMailboxDrainsAfterClose(t *testing.T) {
	m := NewMailbox[string]()
	m.Push("a")
	m.Push("b")
	m.Close()

	assert.False(t, m.Push("c"), "push after close")

	v, ok := m.Receive(nil)
	require.True(t, ok)
	assert.Equal(t, "a", v)
	v, ok = m.Receive(nil)
	require.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = m.Receive(nil)
	assert.False(t, ok)
}

func TestMailboxReceiveBlocksUntilPush(t *testing.T) {
	m := NewMailbox[int]()
	got := make(chan int, 1)
	go func() {
		v, _ := m.Receive(nil)
		got <- v
	}()

	select {
	case <-got:
		t.Fatal("receive returned before push")
	case <-time.After(20 * time.Millisecond):
	}

	m.Push(42)
	select {
	case v := <-got:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("receive did not wake")
	}
}

func TestMailboxStop(t *testing.T) {
	m := NewMailbox[int]()
	stop := make(chan struct{})
	done := make(chan bool, 1)
	go func() {
		_, ok := m.Receive(stop)
		done <- ok
	}()

	close(stop)
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("stop did not unblock receive")
	}
}

func TestMailboxConcurrentProducers(t *testing.T) {
	m := NewMailbox[int]()
	const producers, each = 8, 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				m.Push(i)
			}
		}()
	}
	go func() {
		wg.Wait()
		m.Close()
	}()

	n := 0
	for {
		if _, ok := m.Receive(nil); !ok {
			break
		}
		n++
	}
	assert.Equal(t, producers*each, n)
}
