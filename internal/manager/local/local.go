// Package local implements the goroutine-pool manager backend. It plays
// the role spec.md's subprocess-per-trial local backend plays for the
// source system, but Go has no GIL to escape and needs no re-exec dance
// to get real parallelism: each trial runs as an ordinary goroutine,
// talking to the event loop over an in-memory ipc.Pipe pair rather than
// an OS pipe, the same adaptation the teacher's own worker.Pool makes
// for push-mode tasks, generalized here to a pull/owner-per-trial model.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/trialmesh/trialmesh/internal/ipc"
	"github.com/trialmesh/trialmesh/internal/manager"
	"github.com/trialmesh/trialmesh/internal/messages"
	"github.com/trialmesh/trialmesh/internal/study"
	"github.com/trialmesh/trialmesh/internal/trial"
	"github.com/trialmesh/trialmesh/pkg/types"
)

var log = slog.Default()

// ErrPruned is an alias of trial.ErrPruned kept for callers that only
// import this package.
var ErrPruned = trial.ErrPruned

// Manager runs trials as goroutines within the current process.
type Manager struct {
	study     *study.Study
	objective trial.Objective
	nJobs     int

	mu     sync.Mutex
	conns  map[types.TrialID]*ipc.Pipe
	exited map[types.TrialID]bool
	inbox  chan messages.Message
	wg     sync.WaitGroup
}

// New builds a local Manager bound to st, running objective for each
// created trial. nJobs <= 0 or greater than the host's CPU count is
// clamped to runtime.NumCPU(), mirroring Optuna's own n_jobs handling.
func New(st *study.Study, objective trial.Objective, nJobs int) *Manager {
	if nJobs <= 0 || nJobs > runtime.NumCPU() {
		nJobs = runtime.NumCPU()
	}
	return &Manager{
		study:     st,
		objective: objective,
		nJobs:     nJobs,
		conns:     map[types.TrialID]*ipc.Pipe{},
		exited:    map[types.TrialID]bool{},
		inbox:     make(chan messages.Message, 64),
	}
}

// NJobs reports the (possibly clamped) worker concurrency.
func (m *Manager) NJobs() int { return m.nJobs }

// CreateTrials issues up to n new trial IDs and starts one goroutine per
// trial, each running the objective against a fresh Trial proxy.
func (m *Manager) CreateTrials(_ context.Context, n int) ([]types.TrialID, error) {
	ids := make([]types.TrialID, 0, n)
	for i := 0; i < n; i++ {
		id := m.study.CreateTrial()
		workerEnd, managerEnd := ipc.NewPipePair()

		m.mu.Lock()
		m.conns[id] = managerEnd
		m.mu.Unlock()

		m.wg.Add(1)
		go m.runTrial(id, workerEnd, managerEnd)

		ids = append(ids, id)
	}
	return ids, nil
}

func (m *Manager) runTrial(id types.TrialID, workerEnd, managerEnd *ipc.Pipe) {
	defer m.wg.Done()
	defer workerEnd.Close()

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		m.relay(id, managerEnd)
	}()

	t := trial.New(id, workerEnd)
	values, err := m.invoke(context.Background(), t)

	switch {
	case errors.Is(err, ErrPruned):
		_ = workerEnd.Put(messages.NewPruned(id, err.Error()))
	case err != nil:
		_ = workerEnd.Put(messages.NewFailed(id, err))
	default:
		_ = workerEnd.Put(messages.NewCompleted(id, values))
	}
	<-relayDone
}

// invoke runs the objective, converting a panic into an error so that
// runTrial reports a panicking objective as a Failed message instead of
// crashing the process.
func (m *Manager) invoke(ctx context.Context, t *trial.Trial) (values []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("manager/local: objective panicked: %v", r)
		}
	}()
	return m.objective(ctx, t)
}

// relay forwards every message arriving on the manager side of a trial's
// pipe into the shared inbox until the pipe's closing message has passed
// through, or the pipe itself closes first.
func (m *Manager) relay(_ types.TrialID, conn *ipc.Pipe) {
	for {
		msg, err := conn.Get(context.Background())
		if err != nil {
			return
		}
		m.inbox <- msg
		if msg.Closing() {
			return
		}
	}
}

// GetMessage returns the next message from any running trial.
func (m *Manager) GetMessage(ctx context.Context) (messages.Message, error) {
	select {
	case msg := <-m.inbox:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Respond implements messages.Manager.
func (m *Manager) Respond(trialID types.TrialID, msg messages.Message) error {
	m.mu.Lock()
	conn, ok := m.conns[trialID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("manager/local: no connection for trial %d", trialID)
	}
	return conn.Put(msg)
}

// RegisterExit implements messages.Manager.
func (m *Manager) RegisterExit(trialID types.TrialID) {
	m.mu.Lock()
	conn := m.conns[trialID]
	delete(m.conns, trialID)
	m.exited[trialID] = true
	m.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// Running reports how many trials have been created but not yet exited.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// StopOptimization closes every remaining trial connection, which
// unblocks any worker goroutine parked in Trial.request, and waits up
// to patience for all worker goroutines to return. It always waits: a
// fire-and-forget stop was the source system's behavior on this backend
// and is deliberately not reproduced here.
func (m *Manager) StopOptimization(ctx context.Context, patience time.Duration) error {
	m.mu.Lock()
	for _, conn := range m.conns {
		_ = conn.Close()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(patience)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		log.Warn("local manager: workers did not stop within patience", "patience", patience)
		return manager.ErrStopTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) Close() error { return nil }

var _ manager.Manager = (*Manager)(nil)
