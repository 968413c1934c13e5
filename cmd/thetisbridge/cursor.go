package main

import (
	"errors"
	"fmt"
)

// ErrInvalidKey is returned by CircularCursor.StartFrom for a key outside the table.
var ErrInvalidKey = errors.New("invalid cursor key")

// CircularCursor is a cyclic cursor over an ordered table keyed 0..N-1.
//
// Invariant: 0 <= index < len(entries). The table must not be empty.
//
// Not safe for concurrent use: the daemon goroutine is its only writer.
type CircularCursor[V any] struct {
	entries []V
	index   int
}

// NewCircularCursor creates a cursor positioned at key 0.
func NewCircularCursor[V any](entries []V) (*CircularCursor[V], error) {
	if len(entries) == 0 {
		return nil, errors.New("circular cursor: empty table")
	}
	return &CircularCursor[V]{entries: entries}, nil
}

// Len returns the table size.
func (c *CircularCursor[V]) Len() int { return len(c.entries) }

// StartFrom repositions the cursor at key.
func (c *CircularCursor[V]) StartFrom(key int) error {
	if key < 0 || key >= len(c.entries) {
		return fmt.Errorf("%w: %d (table size %d)", ErrInvalidKey, key, len(c.entries))
	}
	c.index = key
	return nil
}

// Current returns the entry at the cursor without moving it.
func (c *CircularCursor[V]) Current() (int, V) {
	return c.index, c.entries[c.index]
}

// Next advances one position (wrapping) and returns the new position.
func (c *CircularCursor[V]) Next() (int, V) {
	c.index = (c.index + 1) % len(c.entries)
	return c.Current()
}

// Previous retreats one position (wrapping) and returns the new position.
func (c *CircularCursor[V]) Previous() (int, V) {
	c.index = (c.index - 1 + len(c.entries)) % len(c.entries)
	return c.Current()
}

// Seek steps in dir until match accepts an entry, visiting at most Len()
// positions. If nothing matches the cursor ends where it started and ok is false.
func (c *CircularCursor[V]) Seek(dir Direction, match func(V) bool) (key int, entry V, ok bool) {
	step := c.Next
	if dir == DirectionDown {
		step = c.Previous
	}
	for i := 0; i < len(c.entries); i++ {
		key, entry = step()
		if match(entry) {
			return key, entry, true
		}
	}
	key, entry = c.Current()
	return key, entry, false
}
