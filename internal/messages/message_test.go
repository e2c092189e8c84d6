package messages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialmesh/trialmesh/internal/study"
	"github.com/trialmesh/trialmesh/pkg/types"
)

// fakeManager records Respond/RegisterExit calls for assertions.
type fakeManager struct {
	responses map[types.TrialID][]Message
	exited    map[types.TrialID]bool
}

func newFakeManager() *fakeManager {
	return &fakeManager{responses: map[types.TrialID][]Message{}, exited: map[types.TrialID]bool{}}
}

func (f *fakeManager) Respond(trial types.TrialID, msg Message) error {
	f.responses[trial] = append(f.responses[trial], msg)
	return nil
}

func (f *fakeManager) RegisterExit(trial types.TrialID) {
	f.exited[trial] = true
}

func (f *fakeManager) lastResponse(trial types.TrialID) Response {
	msgs := f.responses[trial]
	if len(msgs) == 0 {
		return Response{}
	}
	return msgs[len(msgs)-1].(Response)
}

func TestSuggest_FloatRoundTrips(t *testing.T) {
	st := study.New(study.Maximize, nil, nil, nil)
	mgr := newFakeManager()
	trial := st.CreateTrial()

	dist := types.NewFloatDistribution(0, 1, 0, false)
	err := NewSuggest(trial, "x", dist).Process(context.Background(), st, mgr)
	require.NoError(t, err)

	resp := mgr.lastResponse(trial)
	value, ok := resp.Data.(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, value, 0.0)
	assert.LessOrEqual(t, value, 1.0)
}

func TestSuggest_UnknownDistributionErrors(t *testing.T) {
	st := study.New(study.Maximize, nil, nil, nil)
	mgr := newFakeManager()
	trial := st.CreateTrial()

	bad := types.Distribution{Kind: types.DistributionKind(99)}
	err := NewSuggest(trial, "x", bad).Process(context.Background(), st, mgr)
	assert.Error(t, err)
}

func TestReport_RecordsIntermediateValue(t *testing.T) {
	st := study.New(study.Maximize, nil, nil, nil)
	mgr := newFakeManager()
	trial := st.CreateTrial()

	err := NewReport(trial, 0.5, 3).Process(context.Background(), st, mgr)
	require.NoError(t, err)
}

func TestShouldPrune_RespondsWithBool(t *testing.T) {
	st := study.New(study.Maximize, nil, nil, study.NopPruner{})
	mgr := newFakeManager()
	trial := st.CreateTrial()

	err := NewShouldPrune(trial).Process(context.Background(), st, mgr)
	require.NoError(t, err)

	resp := mgr.lastResponse(trial)
	prune, ok := resp.Data.(bool)
	require.True(t, ok)
	assert.False(t, prune)
}

func TestSetAttribute_UserAndSystem(t *testing.T) {
	st := study.New(study.Maximize, nil, nil, nil)
	mgr := newFakeManager()
	trial := st.CreateTrial()

	require.NoError(t, NewSetAttribute(trial, types.AttributeUser, "k", "v").Process(context.Background(), st, mgr))
	require.NoError(t, NewSetAttribute(trial, types.AttributeSystem, "k2", 7).Process(context.Background(), st, mgr))

	bad := NewSetAttribute(trial, types.AttributeKind(99), "k", "v")
	assert.Error(t, bad.Process(context.Background(), st, mgr))
}

func TestTrialProperty_ReadsParams(t *testing.T) {
	st := study.New(study.Maximize, nil, nil, nil)
	mgr := newFakeManager()
	trial := st.CreateTrial()
	_, err := st.SuggestFloat(trial, "x", types.NewFloatDistribution(0, 1, 0, false))
	require.NoError(t, err)

	err = NewTrialProperty(trial, types.PropertyParams).Process(context.Background(), st, mgr)
	require.NoError(t, err)

	resp := mgr.lastResponse(trial)
	params, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, params, "x")
}

func TestHeartbeat_IsNoop(t *testing.T) {
	st := study.New(study.Maximize, nil, nil, nil)
	mgr := newFakeManager()
	assert.NoError(t, NewHeartbeat().Process(context.Background(), st, mgr))
	assert.Empty(t, mgr.responses)
	assert.Empty(t, mgr.exited)
}

func TestCompleted_TellsStudyAndRegistersExit(t *testing.T) {
	st := study.New(study.Maximize, nil, nil, nil)
	mgr := newFakeManager()
	trial := st.CreateTrial()

	err := NewCompleted(trial, []float64{1.5}).Process(context.Background(), st, mgr)
	require.NoError(t, err)
	assert.True(t, mgr.exited[trial])

	state, err := st.RunState(trial)
	require.NoError(t, err)
	assert.Equal(t, study.RunStateComplete, state)
}

func TestCompleted_SkipsIfAlreadyFinished(t *testing.T) {
	st := study.New(study.Maximize, nil, nil, nil)
	mgr := newFakeManager()
	trial := st.CreateTrial()

	require.NoError(t, NewCompleted(trial, []float64{1.0}).Process(context.Background(), st, mgr))
	require.NoError(t, NewCompleted(trial, []float64{2.0}).Process(context.Background(), st, mgr))

	trials := st.Trials()
	require.Len(t, trials, 1)
	assert.Equal(t, []float64{1.0}, trials[0].Values)
}

func TestPruned_MarksStudyAndRegistersExit(t *testing.T) {
	st := study.New(study.Maximize, nil, nil, nil)
	mgr := newFakeManager()
	trial := st.CreateTrial()

	err := NewPruned(trial, "bound crossed").Process(context.Background(), st, mgr)
	require.NoError(t, err)
	assert.True(t, mgr.exited[trial])

	state, err := st.RunState(trial)
	require.NoError(t, err)
	assert.Equal(t, study.RunStatePruned, state)
}

func TestFailed_MarksStudyAndReturnsError(t *testing.T) {
	st := study.New(study.Maximize, nil, nil, nil)
	mgr := newFakeManager()
	trial := st.CreateTrial()

	err := NewFailed(trial, assertErr("boom")).Process(context.Background(), st, mgr)
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
	assert.True(t, mgr.exited[trial])

	state, err := st.RunState(trial)
	require.NoError(t, err)
	assert.Equal(t, study.RunStateFail, state)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
