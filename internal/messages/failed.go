package messages

import (
	"context"
	"errors"

	"github.com/trialmesh/trialmesh/internal/study"
	"github.com/trialmesh/trialmesh/pkg/types"
)

// Failed reports that the issuing trial's objective raised an exception.
// It always registers the trial's exit. The original cause is carried as
// a string because it crosses the gob wire: a bare error value does not
// round-trip unless its concrete type is registered, and the cause rarely
// needs to be anything richer than text once it reaches the event loop.
type Failed struct {
	Header
	Cause string
}

// NewFailed builds a Failed message for trial from the objective's error.
func NewFailed(trial types.TrialID, cause error) Failed {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	return Failed{Header: Header{Trial: trial, Close: true}, Cause: reason}
}

func (f Failed) Process(_ context.Context, st *study.Study, mgr Manager) error {
	defer mgr.RegisterExit(f.Trial)

	if err := st.MarkFailed(f.Trial, errors.New(f.Cause)); err != nil {
		log.Warn("failed: mark failed", "trial", f.Trial, "error", err)
		return nil
	}
	log.Warn("trial failed", "trial", f.Trial, "cause", f.Cause)
	return errors.New(f.Cause)
}
