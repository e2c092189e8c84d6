package messages

import (
	"context"

	"github.com/trialmesh/trialmesh/internal/study"
	"github.com/trialmesh/trialmesh/pkg/types"
)

// Heartbeat is a no-op message manufactured internally (never sent by a
// worker) to advance the event loop when no worker traffic has occurred,
// e.g. a queue read timeout, or a cluster future that ended without a
// closing message.
type Heartbeat struct {
	Header
}

// NewHeartbeat builds a Heartbeat not tied to any particular trial.
func NewHeartbeat() Heartbeat {
	return Heartbeat{Header: Header{Trial: types.TrialID(-1)}}
}

// NewAnonymousExit builds a closing Heartbeat for trial, published by the
// distributed manager's future observer when a worker ends without ever
// delivering its own closing message (spec.md §4.5/§7(e)): a cooperative
// interrupt, a claim/queue setup failure, or an unrecovered crash. Its
// Closing flag is what lets the event loop count the trial toward
// termination and top up a replacement the same way a normal closing
// message does.
func NewAnonymousExit(trial types.TrialID) Heartbeat {
	return Heartbeat{Header: Header{Trial: trial, Close: true}}
}

func (Heartbeat) Process(context.Context, *study.Study, Manager) error { return nil }
