// Package conversation keeps the bounded per-session history consumed by
// prompt building and mutated only by the orchestrator after a turn ends.
package conversation

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of turns retained per session.
const DefaultCapacity = 5

// Turn records one completed exchange. Turns are never mutated after
// creation.
type Turn struct {
	Question  string
	Answer    string
	QueryText string
	Timestamp time.Time
}

// Context is an ordered, bounded sequence of recent turns. It is safe for
// concurrent readers; only one writer (the orchestrator handling a request
// for this session) may append at a time.
type Context struct {
	mu       sync.RWMutex
	turns    []Turn
	capacity int
}

// New creates a conversation context retaining up to capacity turns.
func New(capacity int) *Context {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Context{capacity: capacity}
}

// Snapshot returns a consistent copy of the history, oldest first. Reads
// taken at request start never observe a mid-request mutation.
func (c *Context) Snapshot() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Append adds a completed turn, evicting the oldest beyond capacity.
func (c *Context) Append(t Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = Evict(append(c.turns, t), c.capacity)
}

// Len returns the current number of retained turns.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// Reset clears all history.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
}

// Evict trims turns to capacity, dropping from the front (FIFO). Pure
// function so the eviction policy is directly testable.
func Evict(turns []Turn, capacity int) []Turn {
	if capacity <= 0 || len(turns) <= capacity {
		return turns
	}
	trimmed := make([]Turn, capacity)
	copy(trimmed, turns[len(turns)-capacity:])
	return trimmed
}
