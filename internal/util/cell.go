package util

import "sync"

// Cell is a one-shot container: the first Set wins and later ones are
// ignored. Readers block on C until it is set.
type Cell[T any] struct {
	once sync.Once
	ch   chan T
}

// NewCell creates an empty cell
func NewCell[T any]() *Cell[T] {
	return &Cell[T]{ch: make(chan T, 1)}
}

// Set stores v if the cell is empty and reports whether it did
func (c *Cell[T]) Set(v T) bool {
	set := false
	c.once.Do(func() {
		c.ch <- v
		set = true
	})
	return set
}

// C returns the channel that delivers the value once
func (c *Cell[T]) C() <-chan T {
	return c.ch
}
