package pipeline

import (
	"context"
	"sync"
)

// Control is the handle pipeline runs hand back (spec.md §4.8.1):
// Completion resolves once every track has drained and the sink(s) have
// written trailers; Stop cooperatively cancels; IsStopped reports
// whether Stop has ever been called. Calling Stop any number of times
// leaves Completion reachable exactly once (spec.md §8, "Pipeline
// idempotent stop").
type Control struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	err     error
	stopped bool
}

func newControl(cancel context.CancelFunc) *Control {
	return &Control{cancel: cancel, done: make(chan struct{})}
}

// Completion returns a channel that closes once the run has fully
// finished: success, a stop-induced abort, or a fatal stage error. Check
// Err after it closes to distinguish the three.
func (c *Control) Completion() <-chan struct{} { return c.done }

// Err returns the fatal error the run ended with, or nil on success or a
// cooperative stop (spec.md §7: "never rejects for stop(); rejects for
// fatal errors"). Only meaningful after Completion has closed.
func (c *Control) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Stop requests cooperative cancellation. Idempotent.
func (c *Control) Stop() {
	c.mu.Lock()
	already := c.stopped
	c.stopped = true
	c.mu.Unlock()
	if !already {
		c.cancel()
	}
}

// IsStopped reports whether Stop has been called.
func (c *Control) IsStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *Control) finish(err error) {
	c.mu.Lock()
	if !c.stopped {
		c.err = err
	}
	c.mu.Unlock()
	close(c.done)
}
