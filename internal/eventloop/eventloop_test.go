package eventloop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialmesh/trialmesh/internal/manager/local"
	"github.com/trialmesh/trialmesh/internal/study"
	"github.com/trialmesh/trialmesh/internal/trial"
)

func newStudy() *study.Study {
	return study.New(study.Minimize, study.NewInMemoryStorage(), study.NewRandomSampler(1), study.NopPruner{})
}

type countingReporter struct{ advanced, done int }

func (r *countingReporter) Advance() { r.advanced++ }
func (r *countingReporter) Done()    { r.done++ }

func TestRun_CompletesAllTrials(t *testing.T) {
	st := newStudy()
	objective := trial.Objective(func(ctx context.Context, tr *trial.Trial) ([]float64, error) {
		x, err := tr.Uniform(ctx, "x", 0, 1)
		require.NoError(t, err)
		return []float64{x}, nil
	})
	mgr := local.New(st, objective, 2)

	reporter := &countingReporter{}
	err := Run(context.Background(), RunConfig{
		Study:   st,
		Manager: mgr,
		NTrials: 10,
		NJobs:   2,
	}, reporter)

	require.NoError(t, err)
	assert.Equal(t, 10, reporter.advanced)
	assert.Equal(t, 1, reporter.done)

	completed := 0
	for _, rec := range st.Trials() {
		if rec.State == study.RunStateComplete {
			completed++
		}
	}
	assert.Equal(t, 10, completed)
}

func TestRun_UncaughtErrorAborts(t *testing.T) {
	st := newStudy()
	boom := errors.New("objective exploded")
	objective := trial.Objective(func(_ context.Context, _ *trial.Trial) ([]float64, error) {
		return nil, boom
	})
	mgr := local.New(st, objective, 2)

	err := Run(context.Background(), RunConfig{
		Study:             st,
		Manager:           mgr,
		NTrials:           5,
		NJobs:             2,
		InterruptPatience: time.Second,
	}, nil)

	require.Error(t, err)
	assert.Equal(t, boom.Error(), err.Error())
}

func TestRun_CaughtErrorContinues(t *testing.T) {
	st := newStudy()
	boom := errors.New("flaky")
	calls := 0
	objective := trial.Objective(func(_ context.Context, tr *trial.Trial) ([]float64, error) {
		calls++
		if calls <= 3 {
			return nil, boom
		}
		return []float64{1}, nil
	})
	mgr := local.New(st, objective, 1)

	err := Run(context.Background(), RunConfig{
		Study:   st,
		Manager: mgr,
		NTrials: 4,
		NJobs:   1,
		Catch:   []func(error) bool{func(err error) bool { return err.Error() == boom.Error() }},
	}, nil)

	require.NoError(t, err)

	failed, completed := 0, 0
	for _, rec := range st.Trials() {
		switch rec.State {
		case study.RunStateFail:
			failed++
		case study.RunStateComplete:
			completed++
		}
	}
	assert.Equal(t, 3, failed)
	assert.Equal(t, 1, completed)
}

func TestRun_TimeoutStopsCleanly(t *testing.T) {
	st := newStudy()
	stuck := make(chan struct{})
	objective := trial.Objective(func(_ context.Context, _ *trial.Trial) ([]float64, error) {
		<-stuck
		return nil, nil
	})
	mgr := local.New(st, objective, 2)

	start := time.Now()
	err := Run(context.Background(), RunConfig{
		Study:             st,
		Manager:           mgr,
		NTrials:           2,
		NJobs:             2,
		Timeout:           20 * time.Millisecond,
		InterruptPatience: 200 * time.Millisecond,
	}, nil)

	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRun_ContextCancelStopsAndReturnsError(t *testing.T) {
	st := newStudy()
	block := make(chan struct{})
	objective := trial.Objective(func(_ context.Context, _ *trial.Trial) ([]float64, error) {
		<-block
		return []float64{0}, nil
	})
	mgr := local.New(st, objective, 2)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, RunConfig{
		Study:             st,
		Manager:           mgr,
		NTrials:           2,
		NJobs:             2,
		InterruptPatience: 50 * time.Millisecond,
	}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	close(block)
}
