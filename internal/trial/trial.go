// Package trial implements the worker-side view of a running trial: a
// thin proxy that turns suggestion/report/attribute calls into messages
// sent over an ipc.Connection. Calls that return a value block for the
// matching Response; Report and the attribute setters only send. It
// never touches internal/study directly, from a worker's point of view,
// the only way to reach the study is through the connection, exactly the
// way spec.md's trial proxy is described as "highly coupled to message
// passing and decoupled from Optuna itself."
package trial

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trialmesh/trialmesh/internal/ipc"
	"github.com/trialmesh/trialmesh/internal/messages"
	"github.com/trialmesh/trialmesh/pkg/types"
)

// ErrUnexpectedReply is returned when a Response payload doesn't have the
// type the caller asked for, a programming error in the event loop or a
// corrupted wire payload, never something a well-behaved objective should
// need to handle.
var ErrUnexpectedReply = errors.New("trial: unexpected reply payload type")

// ErrPruned lets an Objective signal a prune the same way Optuna's
// TrialPruned exception does in the source system, by returning it (or a
// wrapped form of it, see errors.Is) as the error value instead of a
// values slice.
var ErrPruned = errors.New("trial: pruned")

// Objective is the user's study function. A Manager runs one Objective
// invocation per trial, supplying a Trial proxy bound to that trial's
// connection.
type Objective func(ctx context.Context, t *Trial) ([]float64, error)

// Trial is the object an objective function receives. It is safe to use
// from exactly one goroutine at a time, the same restriction Optuna
// itself places on a running trial.
type Trial struct {
	id   types.TrialID
	conn ipc.Connection
}

// New wraps conn as the Trial numbered id.
func New(id types.TrialID, conn ipc.Connection) *Trial {
	return &Trial{id: id, conn: conn}
}

func (t *Trial) Number() types.TrialID { return t.id }

func (t *Trial) request(ctx context.Context, msg messages.Message) (any, error) {
	if err := t.conn.Put(msg); err != nil {
		return nil, err
	}
	reply, err := t.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	resp, ok := reply.(messages.Response)
	if !ok {
		return nil, fmt.Errorf("trial: expected Response, got %T", reply)
	}
	return resp.Data, nil
}

// SuggestFloat samples a float parameter under dist, which must have
// types.DistributionFloat as its Kind.
func (t *Trial) SuggestFloat(ctx context.Context, name string, dist types.Distribution) (float64, error) {
	data, err := t.request(ctx, messages.NewSuggest(t.id, name, dist))
	if err != nil {
		return 0, err
	}
	value, ok := data.(float64)
	if !ok {
		return 0, ErrUnexpectedReply
	}
	return value, nil
}

// SuggestInt samples an int parameter under dist, which must have
// types.DistributionInt as its Kind.
func (t *Trial) SuggestInt(ctx context.Context, name string, dist types.Distribution) (int64, error) {
	data, err := t.request(ctx, messages.NewSuggest(t.id, name, dist))
	if err != nil {
		return 0, err
	}
	value, ok := data.(int64)
	if !ok {
		return 0, ErrUnexpectedReply
	}
	return value, nil
}

// SuggestCategorical samples one of dist.Choices.
func (t *Trial) SuggestCategorical(ctx context.Context, name string, dist types.Distribution) (any, error) {
	return t.request(ctx, messages.NewSuggest(t.id, name, dist))
}

// Uniform is the legacy alias for a non-log float suggestion with no step.
func (t *Trial) Uniform(ctx context.Context, name string, low, high float64) (float64, error) {
	return t.SuggestFloat(ctx, name, types.NewFloatDistribution(low, high, 0, false))
}

// LogUniform is the legacy alias for a log-scale float suggestion.
func (t *Trial) LogUniform(ctx context.Context, name string, low, high float64) (float64, error) {
	return t.SuggestFloat(ctx, name, types.NewFloatDistribution(low, high, 0, true))
}

// DiscreteUniform is the legacy alias for a stepped float suggestion.
func (t *Trial) DiscreteUniform(ctx context.Context, name string, low, high, step float64) (float64, error) {
	return t.SuggestFloat(ctx, name, types.NewFloatDistribution(low, high, step, false))
}

// Report records an intermediate value for step. Fire-and-forget.
func (t *Trial) Report(value float64, step int64) error {
	return t.conn.Put(messages.NewReport(t.id, value, step))
}

// ShouldPrune asks whether the trial's intermediate results justify
// stopping early.
func (t *Trial) ShouldPrune(ctx context.Context) (bool, error) {
	data, err := t.request(ctx, messages.NewShouldPrune(t.id))
	if err != nil {
		return false, err
	}
	prune, ok := data.(bool)
	if !ok {
		return false, ErrUnexpectedReply
	}
	return prune, nil
}

// SetUserAttr attaches a user-namespaced attribute. Fire-and-forget.
func (t *Trial) SetUserAttr(key string, value any) error {
	return t.conn.Put(messages.NewSetAttribute(t.id, types.AttributeUser, key, value))
}

// SetSystemAttr attaches a system-namespaced attribute. Fire-and-forget.
func (t *Trial) SetSystemAttr(key string, value any) error {
	return t.conn.Put(messages.NewSetAttribute(t.id, types.AttributeSystem, key, value))
}

func (t *Trial) property(ctx context.Context, tag types.PropertyTag) (any, error) {
	return t.request(ctx, messages.NewTrialProperty(t.id, tag))
}

// Params returns the parameters sampled so far for this trial.
func (t *Trial) Params(ctx context.Context) (map[string]any, error) {
	data, err := t.property(ctx, types.PropertyParams)
	if err != nil {
		return nil, err
	}
	return asStringMap(data)
}

// Distributions returns the distribution each sampled parameter was drawn from.
func (t *Trial) Distributions(ctx context.Context) (map[string]types.Distribution, error) {
	data, err := t.property(ctx, types.PropertyDistributions)
	if err != nil {
		return nil, err
	}
	dists, ok := data.(map[string]types.Distribution)
	if !ok {
		return nil, ErrUnexpectedReply
	}
	return dists, nil
}

// UserAttrs returns the trial's user-namespaced attributes.
func (t *Trial) UserAttrs(ctx context.Context) (map[string]any, error) {
	data, err := t.property(ctx, types.PropertyUserAttrs)
	if err != nil {
		return nil, err
	}
	return asStringMap(data)
}

// SystemAttrs returns the trial's system-namespaced attributes.
func (t *Trial) SystemAttrs(ctx context.Context) (map[string]any, error) {
	data, err := t.property(ctx, types.PropertySystemAttrs)
	if err != nil {
		return nil, err
	}
	return asStringMap(data)
}

// DatetimeStart returns when the trial began running.
func (t *Trial) DatetimeStart(ctx context.Context) (time.Time, error) {
	data, err := t.property(ctx, types.PropertyDatetimeStart)
	if err != nil {
		return time.Time{}, err
	}
	ts, ok := data.(time.Time)
	if !ok {
		return time.Time{}, ErrUnexpectedReply
	}
	return ts, nil
}

func asStringMap(data any) (map[string]any, error) {
	m, ok := data.(map[string]any)
	if !ok {
		return nil, ErrUnexpectedReply
	}
	return m, nil
}
