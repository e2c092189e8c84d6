package messages

import (
	"context"
	"fmt"

	"github.com/trialmesh/trialmesh/internal/study"
	"github.com/trialmesh/trialmesh/pkg/types"
)

// Suggest asks the study to sample a parameter for the issuing trial. The
// sampled value is returned via a Response on the trial's private channel.
type Suggest struct {
	Header
	Name         string
	Distribution types.Distribution
}

// NewSuggest builds a Suggest request for trial.
func NewSuggest(trial types.TrialID, name string, dist types.Distribution) Suggest {
	return Suggest{Header: Header{Trial: trial}, Name: name, Distribution: dist}
}

func (s Suggest) Process(_ context.Context, st *study.Study, mgr Manager) error {
	var (
		value any
		err   error
	)
	switch s.Distribution.Kind {
	case types.DistributionFloat:
		value, err = st.SuggestFloat(s.Trial, s.Name, s.Distribution)
	case types.DistributionInt:
		value, err = st.SuggestInt(s.Trial, s.Name, s.Distribution)
	case types.DistributionCategorical:
		value, err = st.SuggestCategorical(s.Trial, s.Name, s.Distribution)
	default:
		return fmt.Errorf("messages: unknown distribution variant %d for %q", s.Distribution.Kind, s.Name)
	}
	if err != nil {
		return err
	}
	return mgr.Respond(s.Trial, NewResponse(s.Trial, value))
}
