package cluster

import (
	"context"
	"sync"
	"time"
)

// localQueue is an in-process Queue backed by a buffered channel, lazily
// created on first use so naming a queue never requires a round trip.
type localQueue struct {
	ch chan []byte
}

func newLocalQueue() *localQueue {
	return &localQueue{ch: make(chan []byte, 256)}
}

func (q *localQueue) Put(ctx context.Context, payload []byte) error {
	select {
	case q.ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *localQueue) Get(ctx context.Context, timeout time.Duration) ([]byte, error) {
	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}
	select {
	case payload := <-q.ch:
		return payload, nil
	case <-timeoutC:
		return nil, context.DeadlineExceeded
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// localVariable is an in-process single-slot Variable. A Get issued before
// the first Set blocks on a channel that Set closes and replaces; once a
// value has been set, Get returns the current value immediately.
type localVariable struct {
	mu      sync.Mutex
	value   []byte
	set     bool
	waiters chan struct{}
}

func newLocalVariable() *localVariable {
	return &localVariable{waiters: make(chan struct{})}
}

func (v *localVariable) Get(ctx context.Context) ([]byte, error) {
	v.mu.Lock()
	if v.set {
		value := v.value
		v.mu.Unlock()
		return value, nil
	}
	wait := v.waiters
	v.mu.Unlock()

	select {
	case <-wait:
		v.mu.Lock()
		defer v.mu.Unlock()
		return v.value, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (v *localVariable) Set(_ context.Context, payload []byte) error {
	v.mu.Lock()
	v.value = payload
	v.set = true
	close(v.waiters)
	v.waiters = make(chan struct{})
	v.mu.Unlock()
	return nil
}

// localFuture is a Future backed by a done channel and a captured error.
type localFuture struct {
	done chan struct{}
	err  error
}

func (f *localFuture) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *localFuture) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

func (f *localFuture) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// LocalClient runs WorkFuncs as goroutines in the current process and
// keeps all named queues and variables in memory. It is the reference
// Client used by tests and by single-process "distributed" runs, the same
// role internal/study.InMemoryStorage plays for Optuna's storage backend.
type LocalClient struct {
	mu        sync.Mutex
	queues    map[string]*localQueue
	variables map[string]*localVariable
}

// NewLocalClient builds an empty, ready-to-use LocalClient.
func NewLocalClient() *LocalClient {
	return &LocalClient{
		queues:    map[string]*localQueue{},
		variables: map[string]*localVariable{},
	}
}

func (c *LocalClient) Queue(name string) Queue {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.queues[name]
	if !ok {
		q = newLocalQueue()
		c.queues[name] = q
	}
	return q
}

func (c *LocalClient) Variable(name string) Variable {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.variables[name]
	if !ok {
		v = newLocalVariable()
		c.variables[name] = v
	}
	return v
}

func (c *LocalClient) Submit(ctx context.Context, task TaskContext, fn WorkFunc) (Future, error) {
	f := &localFuture{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.err = fn(ctx, task)
	}()
	return f, nil
}

func (c *LocalClient) Close() error { return nil }
