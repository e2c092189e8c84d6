package messages

import (
	"context"

	"github.com/trialmesh/trialmesh/internal/study"
	"github.com/trialmesh/trialmesh/pkg/types"
)

// Response carries an opaque reply from main to worker over a trial's
// private channel. It is never dispatched by the event loop, Process is a
// no-op, it is only ever consumed directly by the worker-side
// ipc.Connection.Get call that is waiting for it.
type Response struct {
	Header
	Data any
}

// NewResponse builds a Response carrying data for trial.
func NewResponse(trial types.TrialID, data any) Response {
	return Response{Header: Header{Trial: trial}, Data: data}
}

func (Response) Process(context.Context, *study.Study, Manager) error { return nil }
