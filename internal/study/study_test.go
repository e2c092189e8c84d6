package study

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialmesh/trialmesh/pkg/types"
)

func newTestStudy() *Study {
	return New(Minimize, NewInMemoryStorage(), NewRandomSampler(42), NopPruner{})
}

func TestStudy_CreateTrialAssignsMonotonicIDs(t *testing.T) {
	st := newTestStudy()
	first := st.CreateTrial()
	second := st.CreateTrial()
	assert.NotEqual(t, first, second)
	assert.Equal(t, first+1, second)
}

func TestStudy_SuggestFloatWithinBounds(t *testing.T) {
	st := newTestStudy()
	id := st.CreateTrial()
	dist := types.NewFloatDistribution(1.0, 2.0, 0, false)
	for i := 0; i < 50; i++ {
		v, err := st.SuggestFloat(id, "x", dist)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, 1.0)
		assert.LessOrEqual(t, v, 2.0)
	}
}

func TestStudy_SuggestFloatLogUsesLogSampler(t *testing.T) {
	st := newTestStudy()
	id := st.CreateTrial()
	dist := types.NewFloatDistribution(1.0, 100.0, 0, true)
	v, err := st.SuggestFloat(id, "x", dist)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v, 1.0)
	assert.LessOrEqual(t, v, 100.0)
}

func TestStudy_SuggestUnknownTrial(t *testing.T) {
	st := newTestStudy()
	_, err := st.SuggestFloat(types.TrialID(999), "x", types.NewFloatDistribution(0, 1, 0, false))
	assert.ErrorIs(t, err, ErrTrialNotFound)
}

func TestStudy_TellCompletesTrialAndRecordsBest(t *testing.T) {
	st := newTestStudy()
	a := st.CreateTrial()
	b := st.CreateTrial()

	state, err := st.Tell(a, []float64{5.0}, true)
	require.NoError(t, err)
	assert.Equal(t, RunStateComplete, state)

	_, err = st.Tell(b, []float64{1.0}, true)
	require.NoError(t, err)

	best, err := st.BestTrial()
	require.NoError(t, err)
	assert.Equal(t, b, best.ID)
}

func TestStudy_TellSkipIfFinishedIsNoop(t *testing.T) {
	st := newTestStudy()
	id := st.CreateTrial()
	_, err := st.Tell(id, []float64{1.0}, true)
	require.NoError(t, err)

	state, err := st.Tell(id, []float64{2.0}, true)
	require.NoError(t, err)
	assert.Equal(t, RunStateComplete, state)

	rec, _ := st.storage.GetTrial(id)
	assert.Equal(t, []float64{1.0}, rec.Values, "second tell must not overwrite an already-finished trial")
}

func TestStudy_MarkFailedAndPruned(t *testing.T) {
	st := newTestStudy()
	a := st.CreateTrial()
	require.NoError(t, st.MarkFailed(a, assertErr{}))
	state, err := st.RunState(a)
	require.NoError(t, err)
	assert.Equal(t, RunStateFail, state)

	b := st.CreateTrial()
	require.NoError(t, st.MarkPruned(b))
	state, err = st.RunState(b)
	require.NoError(t, err)
	assert.Equal(t, RunStatePruned, state)
}

func TestStudy_BestTrialNoCompletedTrials(t *testing.T) {
	st := newTestStudy()
	_, err := st.BestTrial()
	assert.ErrorIs(t, err, ErrNoCompletedTrial)
}

func TestStudy_PropertyTags(t *testing.T) {
	st := newTestStudy()
	id := st.CreateTrial()
	_, err := st.SuggestFloat(id, "x", types.NewFloatDistribution(0, 1, 0, false))
	require.NoError(t, err)
	require.NoError(t, st.SetUserAttr(id, "tag", "v"))

	params, err := st.Property(id, types.PropertyParams)
	require.NoError(t, err)
	assert.Contains(t, params.(map[string]any), "x")

	attrs, err := st.Property(id, types.PropertyUserAttrs)
	require.NoError(t, err)
	assert.Equal(t, "v", attrs.(map[string]any)["tag"])

	number, err := st.Property(id, types.PropertyNumber)
	require.NoError(t, err)
	assert.Equal(t, int64(0), number)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
