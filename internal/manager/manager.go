// Package manager declares the contract the event loop drives regardless
// of backend, and is implemented by internal/manager/local (goroutine
// pool) and internal/manager/distributed (cluster-backed).
package manager

import (
	"context"
	"errors"
	"time"

	"github.com/trialmesh/trialmesh/internal/messages"
	"github.com/trialmesh/trialmesh/pkg/types"
)

// ErrUnsupportedPlatform is returned when the requested backend cannot run
// on the current platform; the root package's Optimize returns it for the
// local backend on windows.
var ErrUnsupportedPlatform = errors.New("manager: unsupported platform")

// ErrStopTimeout is returned by StopOptimization when workers have not
// reached a terminal state within the allotted patience.
var ErrStopTimeout = errors.New("manager: workers did not stop within patience")

// Manager is the full surface the event loop needs from either backend.
// It embeds messages.Manager so any Manager can be passed directly to a
// Message's Process method.
type Manager interface {
	messages.Manager

	// CreateTrials issues up to n new trial IDs and starts a worker for
	// each, returning the IDs actually created.
	CreateTrials(ctx context.Context, n int) ([]types.TrialID, error)

	// GetMessage blocks for the next inbound message from any running
	// trial.
	GetMessage(ctx context.Context) (messages.Message, error)

	// Running reports how many trials are in flight.
	Running() int

	// StopOptimization asks every in-flight trial to stop and waits up
	// to patience for them to reach a terminal state. Both backends
	// always wait; there is no fire-and-forget stop.
	StopOptimization(ctx context.Context, patience time.Duration) error

	Close() error
}
