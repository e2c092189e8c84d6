package distrial

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialmesh/trialmesh/internal/cluster"
	"github.com/trialmesh/trialmesh/internal/study"
	"github.com/trialmesh/trialmesh/internal/trial"
)

func newStudy() *study.Study {
	return study.New(study.Minimize, study.NewInMemoryStorage(), study.NewRandomSampler(7), study.NopPruner{})
}

func TestOptimize_LocalBackendCompletesAllTrials(t *testing.T) {
	st := newStudy()
	ds := FromStudy(st, nil)

	objective := trial.Objective(func(ctx context.Context, tr *trial.Trial) ([]float64, error) {
		x, err := tr.Uniform(ctx, "x", -10, 10)
		require.NoError(t, err)
		return []float64{x * x}, nil
	})

	err := ds.Optimize(context.Background(), objective, OptimizeConfig{
		NTrials: 10,
		NJobs:   2,
	})
	require.NoError(t, err)

	completed := 0
	for _, rec := range ds.Trials() {
		if rec.State == study.RunStateComplete {
			completed++
		}
	}
	assert.Equal(t, 10, completed)

	best, err := ds.BestTrial()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, best.Values[0], 0.0)
}

func TestOptimize_DistributedBackendCompletesAllTrials(t *testing.T) {
	st := newStudy()
	client := cluster.NewLocalClient()
	ds := FromStudy(st, client)

	objective := trial.Objective(func(ctx context.Context, tr *trial.Trial) ([]float64, error) {
		x, err := tr.Uniform(ctx, "x", 0, 1)
		require.NoError(t, err)
		return []float64{x}, nil
	})

	err := ds.Optimize(context.Background(), objective, OptimizeConfig{
		NTrials:           6,
		NJobs:             3,
		InterruptPatience: time.Second,
	})
	require.NoError(t, err)

	completed := 0
	for _, rec := range ds.Trials() {
		if rec.State == study.RunStateComplete {
			completed++
		}
	}
	assert.Equal(t, 6, completed)
}

func TestOptimize_RejectsNonPositiveTrialCount(t *testing.T) {
	st := newStudy()
	ds := FromStudy(st, nil)

	objective := trial.Objective(func(context.Context, *trial.Trial) ([]float64, error) {
		return []float64{0}, nil
	})

	err := ds.Optimize(context.Background(), objective, OptimizeConfig{NTrials: 0})
	require.ErrorIs(t, err, ErrNonFiniteTrials)
}

func TestOptimize_ClosesStudyOnExit(t *testing.T) {
	st := newStudy()
	ds := FromStudy(st, nil)

	objective := trial.Objective(func(context.Context, *trial.Trial) ([]float64, error) {
		return []float64{1}, nil
	})

	require.NoError(t, ds.Optimize(context.Background(), objective, OptimizeConfig{NTrials: 1, NJobs: 1}))
	assert.NoError(t, st.Close())
}
