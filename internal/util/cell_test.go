package util

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellFirstSetWins(t *testing.T) {
	c := NewCell[string]()

	assert.True(t, c.Set("first"))
	assert.False(t, c.Set("second"))
	assert.Equal(t, "first", <-c.C())

	select {
	case v := <-c.C():
		t.Fatalf("unexpected second value %q", v)
	default:
	}
}

func TestCellConcurrentSetters(t *testing.T) {
	c := NewCell[int]()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			if c.Set(v) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	select {
	case <-c.C():
	case <-time.After(time.Second):
		require.Fail(t, "cell never became readable")
	}
}
