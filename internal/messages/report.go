package messages

import (
	"context"

	"github.com/trialmesh/trialmesh/internal/study"
	"github.com/trialmesh/trialmesh/pkg/types"
)

// Report records an intermediate value for a step on the trial. It is
// fire-and-forget: the worker does not wait for a reply.
type Report struct {
	Header
	Value float64
	Step  int64
}

// NewReport builds a Report for trial.
func NewReport(trial types.TrialID, value float64, step int64) Report {
	return Report{Header: Header{Trial: trial}, Value: value, Step: step}
}

func (r Report) Process(_ context.Context, st *study.Study, _ Manager) error {
	return st.Report(r.Trial, r.Value, r.Step)
}
