// Package cancellation provides the cooperative cancellation token used in
// place of the source system's asynchronous-exception injection (see
// DESIGN NOTES: "Worker interruption in a language without asynchronous
// exception injection"). A supervisor flips a Token; framework code (IPC
// Get, long-running helpers) checks it at suspension points. CPU-only tight
// loops inside the user objective are only interruptible at those
// checkpoints, callers that need a hard backstop must also cancel the
// cluster task.
package cancellation

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrCancelled is returned by Check once the token has been cancelled.
var ErrCancelled = errors.New("cancellation: token cancelled")

// Token is a one-shot cooperative cancellation flag. The zero value is a
// live (not cancelled) token ready to use.
type Token struct {
	once      sync.Once
	cancelled atomic.Bool
	done      chan struct{}
	initOnce  sync.Once
}

// New returns a live Token.
func New() *Token {
	return &Token{done: make(chan struct{})}
}

func (t *Token) lazyInit() {
	t.initOnce.Do(func() {
		if t.done == nil {
			t.done = make(chan struct{})
		}
	})
}

// Cancel marks the token cancelled. Safe to call more than once or
// concurrently; only the first call has effect.
func (t *Token) Cancel() {
	t.lazyInit()
	t.once.Do(func() {
		t.cancelled.Store(true)
		close(t.done)
	})
}

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool {
	return t.cancelled.Load()
}

// Done returns a channel closed when Cancel is called, for use in select
// statements alongside IPC reads and timers.
func (t *Token) Done() <-chan struct{} {
	t.lazyInit()
	return t.done
}

// Check returns ErrCancelled if the token has been cancelled. Intended to be
// called at loop-iteration boundaries inside the user objective or any
// framework helper that runs for an unbounded time.
func (t *Token) Check() error {
	if t.Cancelled() {
		return ErrCancelled
	}
	return nil
}
