// Package cluster abstracts the distributed runtime a study runs on: named
// queues and named shared variables that workers and the main process use
// to exchange messages and coordinate state, plus a Client that can launch
// worker functions onto the cluster. spec.md treats the cluster runtime as
// an out-of-scope external collaborator (the Dask/Ray equivalent); this
// package gives it the same treatment internal/study gives Optuna's
// storage/sampler, a narrow interface plus a reference implementation
// good enough to drive the distributed manager end to end in a single
// process, and a gRPC-backed implementation for the real multi-process
// case (internal/rpc).
package cluster

import (
	"context"
	"time"
)

// Queue is a named, durable FIFO of opaque byte payloads. The distributed
// IPC transport (internal/ipc.QueueConnection) serializes
// messages.Message values with gob and moves the bytes through a Queue.
type Queue interface {
	Put(ctx context.Context, payload []byte) error
	// Get waits up to timeout for a payload. timeout <= 0 means wait
	// forever (bounded only by ctx).
	Get(ctx context.Context, timeout time.Duration) ([]byte, error)
}

// Variable is a named, single-slot shared value, used for the
// distributed-only StopFlag and TaskState coordination primitives
// (spec.md §3). Get on an unset Variable blocks until Set is first called
// or the context is cancelled.
type Variable interface {
	Get(ctx context.Context) ([]byte, error)
	Set(ctx context.Context, payload []byte) error
}

// TaskContext is the addressing information a distributed worker task
// needs to find its private queue and shared variables, per spec.md §4.5.
type TaskContext struct {
	TrialID          int64
	PrivateQueueName string
	StopFlagName     string
	TaskStateName    string
}

// WorkFunc is a unit of work the cluster runs on a worker node. The
// reference Client runs it in a goroutine; the gRPC Client does not accept
// WorkFuncs (its Submit returns ErrSubmitUnsupported), so a remote worker
// process runs the worker entry point itself.
type WorkFunc func(ctx context.Context, task TaskContext) error

// Future observes the outcome of one submitted WorkFunc invocation. Wait
// reports only whether the task finished before ctx ran out, it never
// returns the task's own error, since a task legitimately finishing with
// an error (an objective reporting Failed, say) is not a Wait failure.
// Use Err after Wait returns nil to see what the task itself returned.
type Future interface {
	Wait(ctx context.Context) error
	Err() error
	Done() bool
}

// Client is the handle a distributed manager holds on the cluster
// runtime: it names queues and variables, and submits work.
type Client interface {
	Queue(name string) Queue
	Variable(name string) Variable
	Submit(ctx context.Context, task TaskContext, fn WorkFunc) (Future, error)
	Close() error
}
