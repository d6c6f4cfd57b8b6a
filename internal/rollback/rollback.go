// Package rollback tracks compensating cleanup actions for a multi-step
// run. Actions execute in reverse registration order when the run is
// unwound, and a failing action never stops the remaining ones.
package rollback

import (
	"sync"

	"go.uber.org/zap"
)

type action struct {
	label string
	fn    func() error
}

// Context collects cleanup actions while a run is in flight. Exactly one
// of Succeed or Unwind terminates it; both make later calls no-ops.
type Context struct {
	mu      sync.Mutex
	log     *zap.Logger
	actions []action
	closed  bool
}

func New(log *zap.Logger) *Context {
	if log == nil {
		log = zap.NewNop()
	}
	return &Context{log: log}
}

// Register records a cleanup to run if the context is unwound. Calls
// after the context has closed are ignored with a warning.
func (c *Context) Register(label string, fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.log.Warn("cleanup registered after context closed", zap.String("action", label))
		return
	}
	c.actions = append(c.actions, action{label: label, fn: fn})
}

// Succeed discards all registered cleanups and closes the context.
func (c *Context) Succeed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.actions = nil
}

// Unwind runs the registered cleanups newest-first and closes the
// context. Each failure is logged and the remaining cleanups still run;
// the caller's original error is never replaced by a cleanup error.
// Safe to defer: after Succeed it does nothing.
func (c *Context) Unwind() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	actions := c.actions
	c.actions = nil
	c.mu.Unlock()

	for i := len(actions) - 1; i >= 0; i-- {
		a := actions[i]
		c.log.Info("rolling back", zap.String("action", a.label))
		if err := a.fn(); err != nil {
			c.log.Error("rollback action failed", zap.String("action", a.label), zap.Error(err))
		}
	}
}

// Pending reports how many cleanups would run on unwind.
func (c *Context) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.actions)
}
