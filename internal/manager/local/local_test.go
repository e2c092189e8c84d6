package local

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialmesh/trialmesh/internal/study"
	"github.com/trialmesh/trialmesh/internal/trial"
	"github.com/trialmesh/trialmesh/pkg/types"
)

func drainUntilClosing(t *testing.T, mgr *Manager, st *study.Study, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for trial to finish")
		default:
		}
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		msg, err := mgr.GetMessage(ctx)
		cancel()
		if err != nil {
			continue
		}
		require.NoError(t, msg.Process(context.Background(), st, mgr))
		if msg.Closing() {
			return
		}
	}
}

func TestLocalManager_SimpleObjectiveCompletes(t *testing.T) {
	st := study.New(study.Maximize, nil, nil, nil)
	objective := func(ctx context.Context, tr *trial.Trial) ([]float64, error) {
		x, err := tr.SuggestFloat(ctx, "x", types.NewFloatDistribution(0, 1, 0, false))
		if err != nil {
			return nil, err
		}
		return []float64{x}, nil
	}

	mgr := New(st, objective, 1)
	ids, err := mgr.CreateTrials(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	drainUntilClosing(t, mgr, st, 2*time.Second)

	state, err := st.RunState(ids[0])
	require.NoError(t, err)
	assert.Equal(t, study.RunStateComplete, state)
}

func TestLocalManager_ObjectiveErrorMarksFailed(t *testing.T) {
	st := study.New(study.Maximize, nil, nil, nil)
	objective := func(ctx context.Context, tr *trial.Trial) ([]float64, error) {
		return nil, errors.New("boom")
	}

	mgr := New(st, objective, 1)
	ids, err := mgr.CreateTrials(context.Background(), 1)
	require.NoError(t, err)

	drainUntilClosing(t, mgr, st, 2*time.Second)

	state, err := st.RunState(ids[0])
	require.NoError(t, err)
	assert.Equal(t, study.RunStateFail, state)
}

func TestLocalManager_PrunedObjectiveMarksPruned(t *testing.T) {
	st := study.New(study.Maximize, nil, nil, nil)
	objective := func(ctx context.Context, tr *trial.Trial) ([]float64, error) {
		return nil, ErrPruned
	}

	mgr := New(st, objective, 1)
	ids, err := mgr.CreateTrials(context.Background(), 1)
	require.NoError(t, err)

	drainUntilClosing(t, mgr, st, 2*time.Second)

	state, err := st.RunState(ids[0])
	require.NoError(t, err)
	assert.Equal(t, study.RunStatePruned, state)
}

func TestLocalManager_NJobsClampedToCPUCount(t *testing.T) {
	st := study.New(study.Maximize, nil, nil, nil)
	mgr := New(st, func(context.Context, *trial.Trial) ([]float64, error) { return nil, nil }, 1_000_000)
	assert.Equal(t, runtime.NumCPU(), mgr.NJobs())
	assert.Greater(t, mgr.NJobs(), 0)
}

func TestLocalManager_StopOptimizationUnblocksPendingRequest(t *testing.T) {
	st := study.New(study.Maximize, nil, nil, nil)
	started := make(chan struct{})
	objective := func(ctx context.Context, tr *trial.Trial) ([]float64, error) {
		close(started)
		// Blocks on the pipe, not on ctx: StopOptimization must unblock
		// this by closing the connection, since the worker goroutine here
		// was handed context.Background() and will never see ctx.Done().
		_, err := tr.SuggestFloat(ctx, "x", types.NewFloatDistribution(0, 1, 0, false))
		return nil, err
	}

	mgr := New(st, objective, 1)
	_, err := mgr.CreateTrials(context.Background(), 1)
	require.NoError(t, err)

	<-started
	err = mgr.StopOptimization(context.Background(), time.Second)
	assert.NoError(t, err)
}

func TestLocalManager_StopOptimizationTimesOutOnStuckWorker(t *testing.T) {
	st := study.New(study.Maximize, nil, nil, nil)
	started := make(chan struct{})
	block := make(chan struct{})
	objective := func(ctx context.Context, tr *trial.Trial) ([]float64, error) {
		close(started)
		<-block // never closed: simulates a worker that ignores cancellation
		return nil, nil
	}

	mgr := New(st, objective, 1)
	_, err := mgr.CreateTrials(context.Background(), 1)
	require.NoError(t, err)

	<-started
	err = mgr.StopOptimization(context.Background(), 50*time.Millisecond)
	assert.Error(t, err)
}
