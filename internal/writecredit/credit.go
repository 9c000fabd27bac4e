// Package writecredit implements the bounded write-credit counter: the
// number of outbound frames the transport will admit before the next
// Acquire call suspends.
//
// This collapses the corpus's SMB session.Credits accounting (Granted,
// Consumed, Outstanding, adaptive regrant strategy) to the single counter
// this protocol needs: the river wire protocol has no mid-channel credit
// regrant message, so there is nothing to adapt toward.
package writecredit

import (
	"context"
	"fmt"
	"sync"
)

// Counter is a condition-variable-guarded non-negative credit counter.
type Counter struct {
	mu        sync.Mutex
	cond      *sync.Cond
	available int
}

// New returns a Counter seeded with the transport's advertised initial
// credit.
func New(initial int) *Counter {
	c := &Counter{available: initial}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Acquire blocks until a credit unit is available, then decrements the
// counter and returns. It returns ctx.Err() if ctx is cancelled first.
func (c *Counter) Acquire(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)

	// Wake the waiter if ctx is cancelled, by nudging the condition
	// variable so the loop below re-checks ctx.Err().
	go func() {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.cond.Broadcast()
			c.mu.Unlock()
		case <-done:
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()
	for c.available == 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("acquire write credit: %w", err)
		}
		c.cond.Wait()
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("acquire write credit: %w", err)
	}
	c.available--
	return nil
}

// Release returns exactly one credit unit to the pool and wakes one
// waiter, if any is blocked in Acquire.
func (c *Counter) Release() {
	c.mu.Lock()
	c.available++
	c.mu.Unlock()
	c.cond.Signal()
}

// Available returns the current credit count, for diagnostics/tests only.
func (c *Counter) Available() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available
}
