package messages

import (
	"context"

	"github.com/trialmesh/trialmesh/internal/study"
	"github.com/trialmesh/trialmesh/pkg/types"
)

// Completed carries the objective's return value(s) for the issuing trial.
// It always registers the trial's exit, win or lose: a tell failure (e.g.
// the trial was already finished by a racing duplicate) is logged as a
// warning, not propagated as an error, because by the time Completed
// arrives the worker has already exited successfully.
type Completed struct {
	Header
	Values []float64
}

// NewCompleted builds a Completed message for trial.
func NewCompleted(trial types.TrialID, values []float64) Completed {
	return Completed{Header: Header{Trial: trial, Close: true}, Values: values}
}

func (c Completed) Process(_ context.Context, st *study.Study, mgr Manager) error {
	defer mgr.RegisterExit(c.Trial)

	state, err := st.Tell(c.Trial, c.Values, true)
	if err != nil {
		log.Warn("completed: tell failed", "trial", c.Trial, "error", err)
		return nil
	}
	if state != study.RunStateComplete {
		log.Warn("completed: tell did not reach complete state", "trial", c.Trial, "state", state)
		return nil
	}

	if best, err := st.BestTrial(); err == nil && len(c.Values) == 1 {
		log.Info("trial finished", "trial", c.Trial, "value", c.Values[0],
			"best_trial", best.ID, "best_value", best.Values[0])
	} else {
		log.Info("trial finished", "trial", c.Trial, "values", c.Values)
	}
	return nil
}
