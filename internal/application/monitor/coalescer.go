package monitor

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiescence window used when none is configured.
const DefaultDebounce = time.Second

// Coalescer merges bursts of signals. Every Signal restarts the window;
// fire runs once the window elapses with no further signal.
type Coalescer struct {
	window time.Duration
	fire   func()

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	pending    int
	stopped    bool
}

func NewCoalescer(window time.Duration, fire func()) *Coalescer {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Coalescer{window: window, fire: fire}
}

// Signal records one raw signal and restarts the window.
func (c *Coalescer) Signal() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	c.pending++
	c.generation++
	if c.timer != nil {
		c.timer.Stop()
	}
	generation := c.generation
	c.timer = time.AfterFunc(c.window, func() {
		c.flush(generation)
	})
}

// Pending returns the number of signals waiting for the window to close.
func (c *Coalescer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Stop cancels any pending fire. Signals after Stop are dropped.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	c.pending = 0
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Coalescer) flush(generation uint64) {
	c.mu.Lock()
	// A timer that was stopped too late to cancel still lands here.
	if c.stopped || generation != c.generation {
		c.mu.Unlock()
		return
	}
	c.pending = 0
	c.timer = nil
	c.mu.Unlock()

	c.fire()
}
