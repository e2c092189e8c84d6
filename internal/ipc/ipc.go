// Package ipc implements the two wire-level transports a trial talks to the
// main process over, per SPEC_FULL.md §4.1: an in-process pipe for the local
// backend, and a named-queue transport for the distributed backend. Both
// transports move the same messages.Message values; the queue transport
// gob-encodes them, the pipe hands them over as Go values.
package ipc

import (
	"context"
	"errors"
	"log/slog"

	"github.com/trialmesh/trialmesh/internal/messages"
)

var log = slog.Default()

// ErrStreamClosed is returned by Get once the peer has closed its end of the
// connection and no further messages will ever arrive.
var ErrStreamClosed = errors.New("ipc: stream closed")

// ErrAmbiguousWaitPolicy is returned by NewQueueConnection when both a fixed
// Timeout and a RetryPolicy are set, a Connection waits one way or the
// other, never both.
var ErrAmbiguousWaitPolicy = errors.New("ipc: connection configured with both a fixed timeout and a retry policy")

// Connection is the transport a Trial proxy and a manager use to exchange
// messages.Message values. Get blocks until a message arrives, the context
// is cancelled, or the stream closes. Put never blocks on a reply, message
// delivery is always one-directional per call.
type Connection interface {
	Get(ctx context.Context) (messages.Message, error)
	Put(msg messages.Message) error
	Close() error
}
