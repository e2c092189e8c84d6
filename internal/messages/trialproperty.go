package messages

import (
	"context"

	"github.com/trialmesh/trialmesh/internal/study"
	"github.com/trialmesh/trialmesh/pkg/types"
)

// TrialProperty reads one named, read-only property of the issuing trial
// and replies with a Response carrying the value. The set of readable
// properties is a closed enumeration (types.PropertyTag), not a reflected
// field name, per DESIGN NOTES.
type TrialProperty struct {
	Header
	Tag types.PropertyTag
}

// NewTrialProperty builds a TrialProperty request for trial.
func NewTrialProperty(trial types.TrialID, tag types.PropertyTag) TrialProperty {
	return TrialProperty{Header: Header{Trial: trial}, Tag: tag}
}

func (t TrialProperty) Process(_ context.Context, st *study.Study, mgr Manager) error {
	value, err := st.Property(t.Trial, t.Tag)
	if err != nil {
		return err
	}
	return mgr.Respond(t.Trial, NewResponse(t.Trial, value))
}
