package messages

import (
	"context"
	"fmt"

	"github.com/trialmesh/trialmesh/internal/study"
	"github.com/trialmesh/trialmesh/pkg/types"
)

// SetAttribute sets a user- or system-namespaced attribute on the issuing
// trial. Fire-and-forget: the worker does not wait for a reply. The
// namespace is a closed variant rather than a string, per DESIGN NOTES.
type SetAttribute struct {
	Header
	Kind  types.AttributeKind
	Key   string
	Value any
}

// NewSetAttribute builds a SetAttribute message for trial.
func NewSetAttribute(trial types.TrialID, kind types.AttributeKind, key string, value any) SetAttribute {
	return SetAttribute{Header: Header{Trial: trial}, Kind: kind, Key: key, Value: value}
}

func (s SetAttribute) Process(_ context.Context, st *study.Study, _ Manager) error {
	switch s.Kind {
	case types.AttributeUser:
		return st.SetUserAttr(s.Trial, s.Key, s.Value)
	case types.AttributeSystem:
		return st.SetSystemAttr(s.Trial, s.Key, s.Value)
	default:
		return fmt.Errorf("messages: unknown attribute namespace %d", s.Kind)
	}
}
