// Package eventloop implements the single authoritative dispatcher
// described in spec.md §4.6: it creates trials, drains the manager's
// multiplexed message stream, runs each message's Process against the
// study, and orchestrates shutdown on completion, timeout, an uncaught
// objective error, or caller cancellation.
package eventloop

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/trialmesh/trialmesh/internal/manager"
	"github.com/trialmesh/trialmesh/internal/metrics"
	"github.com/trialmesh/trialmesh/internal/progress"
	"github.com/trialmesh/trialmesh/internal/study"
	"github.com/trialmesh/trialmesh/pkg/types"
)

var log = slog.Default()

const defaultInterruptPatience = 10 * time.Second

// RunConfig configures one call to Run.
type RunConfig struct {
	Study   *study.Study
	Manager manager.Manager

	// NTrials is how many trials this run creates. Must be > 0.
	NTrials int

	// Timeout bounds the whole run's wall-clock time. 0 disables it.
	Timeout time.Duration

	// NJobs caps how many trials are in flight at once. <= 0 or more
	// than runtime.NumCPU() clamps to runtime.NumCPU().
	NJobs int

	// Catch lists predicates that, given an error surfaced while
	// processing a message (currently only messages.Failed returns
	// one), decide whether that error should be swallowed and the run
	// continued rather than aborted. An error is caught if any
	// predicate returns true.
	Catch []func(error) bool

	// InterruptPatience bounds how long StopOptimization waits for
	// in-flight trials to reach a terminal state. Defaults to 10s.
	InterruptPatience time.Duration

	// Metrics receives trial-lifecycle events. Leave nil to disable (Run
	// substitutes metrics.Nop{}).
	Metrics metrics.Recorder
}

func (c RunConfig) jobs() int {
	n := c.NJobs
	if n <= 0 || n > runtime.NumCPU() {
		return runtime.NumCPU()
	}
	return n
}

func (c RunConfig) patience() time.Duration {
	if c.InterruptPatience <= 0 {
		return defaultInterruptPatience
	}
	return c.InterruptPatience
}

func (c RunConfig) caught(err error) bool {
	for _, predicate := range c.Catch {
		if predicate != nil && predicate(err) {
			return true
		}
	}
	return false
}

// Run drives cfg.Manager to completion against cfg.Study, reporting each
// closing message to reporter. It returns the first uncaught error (from
// either a message's Process or a context cancellation); a clean
// completion or timeout returns nil.
func Run(ctx context.Context, cfg RunConfig, reporter progress.Reporter) error {
	if reporter == nil {
		reporter = progress.Nop{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}

	started := map[types.TrialID]time.Time{}
	recordCreated := func(ids []types.TrialID) {
		now := time.Now()
		for _, id := range ids {
			started[id] = now
			cfg.Metrics.RecordCreated()
		}
	}

	toCreate := cfg.NTrials
	if batch := cfg.jobs(); batch < toCreate {
		toCreate = batch
	}
	created, err := cfg.Manager.CreateTrials(ctx, toCreate)
	if err != nil {
		return err
	}
	recordCreated(created)
	pending := cfg.NTrials - len(created)
	closed := 0

	var deadline <-chan time.Time
	if cfg.Timeout > 0 {
		timer := time.NewTimer(cfg.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			stopAndFail(cfg)
			return ctx.Err()
		case <-deadline:
			log.Warn("eventloop: timeout reached, stopping")
			stopAndFail(cfg)
			return nil
		default:
		}

		msg, err := cfg.Manager.GetMessage(ctx)
		if err != nil {
			log.Warn("eventloop: GetMessage failed, stopping", "error", err)
			stopAndFail(cfg)
			return err
		}

		procErr := msg.Process(ctx, cfg.Study, cfg.Manager)
		if procErr != nil && !cfg.caught(procErr) {
			log.Error("eventloop: uncaught error, stopping", "trial", msg.TrialID(), "error", procErr)
			stopAndFail(cfg)
			return procErr
		}

		if cfg.Timeout > 0 {
			select {
			case <-deadline:
				log.Warn("eventloop: timeout reached, stopping")
				stopAndFail(cfg)
				return nil
			default:
			}
		}

		if msg.Closing() {
			closed++
			reporter.Advance()
			recordOutcome(cfg, msg.TrialID(), started)

			if pending > 0 {
				next, err := cfg.Manager.CreateTrials(ctx, 1)
				if err != nil {
					stopAndFail(cfg)
					return err
				}
				recordCreated(next)
				pending -= len(next)
			}
		}

		cfg.Metrics.SetRunning(cfg.Manager.Running())

		if closed >= cfg.NTrials && cfg.Manager.Running() == 0 {
			reporter.Done()
			return nil
		}
	}
}

// recordOutcome attributes a just-closed trial's wall-clock duration and
// terminal state to cfg.Metrics. A trial that closed without the study
// ever recording a terminal state for it (an anonymous exit, see
// messages.NewAnonymousExit) is not attributed to any outcome here and its
// start time is dropped; stopAndFail counts it as failed if it is still
// running when a run aborts.
func recordOutcome(cfg RunConfig, id types.TrialID, started map[types.TrialID]time.Time) {
	var durationSeconds float64
	if start, ok := started[id]; ok {
		durationSeconds = time.Since(start).Seconds()
		delete(started, id)
	}

	state, err := cfg.Study.RunState(id)
	if err != nil {
		return
	}
	switch state {
	case study.RunStateComplete:
		cfg.Metrics.RecordCompleted(durationSeconds)
	case study.RunStatePruned:
		cfg.Metrics.RecordPruned(durationSeconds)
	case study.RunStateFail:
		cfg.Metrics.RecordFailed(durationSeconds)
	}
}

// stopAndFail asks the manager to stop and marks every trial the study
// still considers running as failed, per spec.md §4.6's abort path.
func stopAndFail(cfg RunConfig) {
	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.patience()+time.Second)
	defer cancel()
	if err := cfg.Manager.StopOptimization(stopCtx, cfg.patience()); err != nil {
		log.Warn("eventloop: StopOptimization did not complete cleanly", "error", err)
		if errors.Is(err, manager.ErrStopTimeout) {
			cfg.Metrics.RecordStopTimeout()
		}
	}
	for _, rec := range cfg.Study.Trials() {
		if rec.State == study.RunStateRunning {
			_ = cfg.Study.MarkFailed(rec.ID, errors.New("eventloop: aborted"))
			cfg.Metrics.RecordFailed(0)
		}
	}
}
