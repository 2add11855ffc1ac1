package pending

import "sync"

// Counter tracks in-flight upload batches for UI affordances. Decrement
// never drives the count below zero.
type Counter struct {
	mu    sync.Mutex
	count int
}

// New creates a zeroed counter.
func New() *Counter {
	return &Counter{}
}

// Increment records one batch entering flight.
func (c *Counter) Increment() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

// Decrement records one batch leaving flight, floored at zero.
func (c *Counter) Decrement() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count > 0 {
		c.count--
	}
}

// Reset clears the counter.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = 0
}

// Value returns the current in-flight batch count.
func (c *Counter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
