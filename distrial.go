// Package distrial is the thin study facade described in spec.md §4.7: it
// picks a manager backend, drives the event loop, and otherwise passes
// straight through to the underlying study. Everything interesting lives
// in internal/{eventloop,manager,trial,study,cluster}; this file wires
// those pieces together into the one entry point callers use.
package distrial

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"time"

	"github.com/trialmesh/trialmesh/internal/cluster"
	"github.com/trialmesh/trialmesh/internal/eventloop"
	"github.com/trialmesh/trialmesh/internal/manager"
	"github.com/trialmesh/trialmesh/internal/manager/distributed"
	"github.com/trialmesh/trialmesh/internal/manager/local"
	"github.com/trialmesh/trialmesh/internal/metrics"
	"github.com/trialmesh/trialmesh/internal/progress"
	"github.com/trialmesh/trialmesh/internal/study"
	"github.com/trialmesh/trialmesh/internal/trial"
	"github.com/trialmesh/trialmesh/pkg/types"
)

// ErrNonFiniteTrials is returned when OptimizeConfig.NTrials is not a
// positive, finite count.
var ErrNonFiniteTrials = errors.New("distrial: n_trials must be a positive, finite count")

// OptimizeConfig configures one Optimize call. NTrials is required;
// every other field has a documented default.
type OptimizeConfig struct {
	// NTrials is how many trials to run. Must be > 0.
	NTrials int

	// Timeout bounds the whole run's wall-clock time. 0 (default)
	// disables it.
	Timeout time.Duration

	// NJobs caps trial concurrency. <= 0 or greater than the host's
	// CPU count clamps to runtime.NumCPU().
	NJobs int

	// Catch lists predicates deciding whether an objective error
	// should be swallowed (the trial is still marked failed) rather
	// than aborting the whole run.
	Catch []func(error) bool

	// InterruptPatience bounds how long a stop waits for in-flight
	// trials to reach a terminal state. Defaults to 10s.
	InterruptPatience time.Duration

	// ShowProgressBar renders a single-line progress indicator to
	// stderr while the run is in flight. Defaults to false.
	ShowProgressBar bool

	// DistributedConfig configures the distributed backend when
	// DistributedStudy was built with a non-nil cluster.Client.
	DistributedConfig distributed.Config

	// PublicQueueName fixes the distributed backend's shared reply
	// queue name. Leave empty to let Optimize generate a random one,
	// only needed when a process other than the one calling Optimize
	// must know the name in advance (a standalone worker binary
	// dialing in over internal/rpc, for instance).
	PublicQueueName string

	// Metrics receives trial-lifecycle events for the run. Leave nil to
	// disable (the event loop substitutes metrics.Nop{}).
	Metrics metrics.Recorder
}

// DistributedStudy wraps a study with the manager-selection and
// event-loop plumbing Optimize needs. The zero value is not usable; build
// one with FromStudy.
type DistributedStudy struct {
	study  *study.Study
	client cluster.Client
}

// FromStudy adapts st for distributed optimization. A nil client selects
// the local (goroutine-pool) backend for every Optimize call; a non-nil
// client selects the cluster-backed distributed backend.
func FromStudy(st *study.Study, client cluster.Client) *DistributedStudy {
	return &DistributedStudy{study: st, client: client}
}

// Optimize runs objective across cfg.NTrials trials, choosing the
// distributed manager when the DistributedStudy was built with a
// cluster.Client and the local manager otherwise, then drives the event
// loop to completion. The study's storage session is always released
// before Optimize returns.
func (d *DistributedStudy) Optimize(ctx context.Context, objective trial.Objective, cfg OptimizeConfig) error {
	defer d.study.Close()

	if cfg.NTrials <= 0 {
		return ErrNonFiniteTrials
	}
	if cfg.NJobs <= 0 || cfg.NJobs > runtime.NumCPU() {
		cfg.NJobs = runtime.NumCPU()
	}

	mgr, err := d.buildManager(objective, cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()

	var reporter progress.Reporter = progress.Nop{}
	if cfg.ShowProgressBar {
		reporter = progress.NewBar(os.Stderr, cfg.NTrials)
	}

	return eventloop.Run(ctx, eventloop.RunConfig{
		Study:             d.study,
		Manager:           mgr,
		NTrials:           cfg.NTrials,
		Timeout:           cfg.Timeout,
		NJobs:             cfg.NJobs,
		Catch:             cfg.Catch,
		InterruptPatience: cfg.InterruptPatience,
		Metrics:           cfg.Metrics,
	}, reporter)
}

func (d *DistributedStudy) buildManager(objective trial.Objective, cfg OptimizeConfig) (manager.Manager, error) {
	if d.client == nil {
		if runtime.GOOS == "windows" {
			return nil, fmt.Errorf("%w: local backend requires process-pipe semantics unavailable on windows", manager.ErrUnsupportedPlatform)
		}
		return local.New(d.study, objective, cfg.NJobs), nil
	}

	publicQueueName := cfg.PublicQueueName
	if publicQueueName == "" {
		publicQueueName = fmt.Sprintf("trialmesh/run/%d/public", rand.Int63())
	}
	return distributed.New(d.study, d.client, objective, publicQueueName, cfg.DistributedConfig)
}

// BestTrial passes through to the underlying study.
func (d *DistributedStudy) BestTrial() (*study.TrialRecord, error) { return d.study.BestTrial() }

// Trials passes through to the underlying study.
func (d *DistributedStudy) Trials() []*study.TrialRecord { return d.study.Trials() }

// Direction passes through to the underlying study.
func (d *DistributedStudy) Direction() study.Direction { return d.study.Direction() }

// RunState reports one trial's terminal (or running) state.
func (d *DistributedStudy) RunState(id types.TrialID) (study.RunState, error) {
	return d.study.RunState(id)
}
