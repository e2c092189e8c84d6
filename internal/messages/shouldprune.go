package messages

import (
	"context"

	"github.com/trialmesh/trialmesh/internal/study"
	"github.com/trialmesh/trialmesh/pkg/types"
)

// ShouldPrune asks the pruner about the issuing trial and replies with a
// boolean Response.
type ShouldPrune struct {
	Header
}

// NewShouldPrune builds a ShouldPrune request for trial.
func NewShouldPrune(trial types.TrialID) ShouldPrune {
	return ShouldPrune{Header: Header{Trial: trial}}
}

func (s ShouldPrune) Process(_ context.Context, st *study.Study, mgr Manager) error {
	prune, err := st.ShouldPrune(s.Trial)
	if err != nil {
		return err
	}
	return mgr.Respond(s.Trial, NewResponse(s.Trial, prune))
}
