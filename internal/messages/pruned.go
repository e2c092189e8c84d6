package messages

import (
	"context"

	"github.com/trialmesh/trialmesh/internal/study"
	"github.com/trialmesh/trialmesh/pkg/types"
)

// Pruned reports that the issuing trial raised a prune signal instead of
// returning a value. It always registers the trial's exit.
type Pruned struct {
	Header
	Reason string
}

// NewPruned builds a Pruned message for trial.
func NewPruned(trial types.TrialID, reason string) Pruned {
	return Pruned{Header: Header{Trial: trial, Close: true}, Reason: reason}
}

func (p Pruned) Process(_ context.Context, st *study.Study, mgr Manager) error {
	defer mgr.RegisterExit(p.Trial)

	if err := st.MarkPruned(p.Trial); err != nil {
		log.Warn("pruned: mark failed", "trial", p.Trial, "error", err)
		return nil
	}
	log.Info("trial pruned", "trial", p.Trial, "reason", p.Reason)
	return nil
}
