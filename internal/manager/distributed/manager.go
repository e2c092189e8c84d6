// Package distributed implements the cluster-backed manager backend:
// trials run as cluster.Client-submitted WorkFuncs, talking to the study
// over named queues (internal/ipc.QueueConnection) instead of the local
// backend's in-memory pipes. Coordination state that has no local-backend
// equivalent, the per-trial stop flag and task-claim state, lives in
// cluster.Variable, per spec.md §3's distributed-only shared variables.
package distributed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/trialmesh/trialmesh/internal/cluster"
	"github.com/trialmesh/trialmesh/internal/ipc"
	"github.com/trialmesh/trialmesh/internal/manager"
	"github.com/trialmesh/trialmesh/internal/messages"
	"github.com/trialmesh/trialmesh/internal/study"
	"github.com/trialmesh/trialmesh/internal/trial"
	"github.com/trialmesh/trialmesh/pkg/types"
)

var log = slog.Default()

// Config tunes the distributed backend.
type Config struct {
	// HeartbeatInterval bounds how long GetMessage waits on the public
	// queue before synthesizing a Heartbeat, per spec.md §6.
	HeartbeatInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 60 * time.Second
	}
	return c
}

type trialHandle struct {
	task   cluster.TaskContext
	future cluster.Future
	exited bool
}

// Manager runs trials on a cluster.Client.
type Manager struct {
	study     *study.Study
	client    cluster.Client
	objective trial.Objective
	cfg       Config

	publicQueueName string
	publicConn      *ipc.QueueConnection

	mu     sync.Mutex
	trials map[types.TrialID]*trialHandle
}

// New builds a distributed Manager. publicQueueName identifies the single
// queue every trial of this study shares for outbound traffic; it should
// be unique per study run (e.g. derived from a study name or UUID) so
// unrelated studies on the same cluster never cross streams.
func New(st *study.Study, client cluster.Client, objective trial.Objective, publicQueueName string, cfg Config) (*Manager, error) {
	cfg = cfg.withDefaults()
	publicConn, err := ipc.NewQueueConnection(client, publicQueueName, ipc.WithTimeout(cfg.HeartbeatInterval))
	if err != nil {
		return nil, err
	}
	return &Manager{
		study:           st,
		client:          client,
		objective:       objective,
		cfg:             cfg,
		publicQueueName: publicQueueName,
		publicConn:      publicConn,
		trials:          map[types.TrialID]*trialHandle{},
	}, nil
}

// TaskFor derives the deterministic queue/variable naming for a trial ID.
// It is exported so a standalone worker process (internal/cli's worker
// command) can reconstruct a trial's TaskContext without ever having
// CreateTrials push one to it over the wire, it races the coordinator's
// own submission and whichever side's Distributable call observes
// TaskStateWaiting first wins, per the CAS dedup in distributable.go.
func TaskFor(id types.TrialID) cluster.TaskContext {
	return cluster.TaskContext{
		TrialID:          int64(id),
		PrivateQueueName: fmt.Sprintf("trialmesh/trial/%d/private", id),
		StopFlagName:     fmt.Sprintf("trialmesh/trial/%d/stop", id),
		TaskStateName:    fmt.Sprintf("trialmesh/trial/%d/state", id),
	}
}

// CreateTrials issues up to n new trial IDs, arms each one's coordination
// variables, and submits it to the cluster.
func (m *Manager) CreateTrials(ctx context.Context, n int) ([]types.TrialID, error) {
	ids := make([]types.TrialID, 0, n)
	for i := 0; i < n; i++ {
		id := m.study.CreateTrial()
		task := TaskFor(id)

		if err := m.client.Variable(task.StopFlagName).Set(ctx, []byte(stopFlagClear)); err != nil {
			return ids, fmt.Errorf("distributed: arm stop flag: %w", err)
		}
		if err := m.client.Variable(task.TaskStateName).Set(ctx, []byte(TaskStateWaiting)); err != nil {
			return ids, fmt.Errorf("distributed: arm task state: %w", err)
		}

		future, err := m.client.Submit(ctx, task, func(ctx context.Context, task cluster.TaskContext) error {
			return Distributable(ctx, m.client, task, m.publicQueueName, m.objective)
		})
		if err != nil {
			return ids, fmt.Errorf("distributed: submit trial %d: %w", id, err)
		}

		m.mu.Lock()
		m.trials[id] = &trialHandle{task: task, future: future}
		m.mu.Unlock()

		go m.watchFuture(id, future)

		ids = append(ids, id)
	}
	return ids, nil
}

// watchFuture waits for a submitted trial's future to resolve and, if it
// ended without ever delivering its own closing message (Distributable
// returned a non-nil error: a claim/queue setup failure, a cooperative
// interrupt, or an unrecovered crash), registers the trial's exit and
// publishes an anonymous-exit heartbeat so the event loop notices the slot
// freed up instead of waiting on a trial that will never close itself.
// Err() returning nil covers both a clean run (Distributable already put
// its own closing message) and the duplicate-dispatch no-op, neither of
// which needs any action here.
func (m *Manager) watchFuture(id types.TrialID, future cluster.Future) {
	if err := future.Wait(context.Background()); err != nil {
		log.Warn("distributed: future wait failed", "trial", id, "error", err)
		return
	}
	if future.Err() == nil {
		return
	}

	m.mu.Lock()
	handle, ok := m.trials[id]
	alreadyExited := ok && handle.exited
	m.mu.Unlock()
	if alreadyExited {
		return
	}

	log.Warn("distributed: trial exited without a closing message", "trial", id, "error", future.Err())
	m.RegisterExit(id)
	if err := m.publicConn.Put(messages.NewAnonymousExit(id)); err != nil {
		log.Warn("distributed: failed to publish anonymous exit", "trial", id, "error", err)
	}
}

// GetMessage reads the next message from the shared public queue. A
// queue-read timeout surfaces as a synthetic Heartbeat rather than an
// error, so the event loop can use the gap to check for its own timeout
// or interruption (spec.md §4.6).
func (m *Manager) GetMessage(ctx context.Context) (messages.Message, error) {
	msg, err := m.publicConn.Get(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return messages.NewHeartbeat(), nil
	}
	return msg, nil
}

// Respond implements messages.Manager by writing to the trial's private
// queue.
func (m *Manager) Respond(trialID types.TrialID, msg messages.Message) error {
	m.mu.Lock()
	handle, ok := m.trials[trialID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("distributed: no handle for trial %d", trialID)
	}
	privateConn, err := ipc.NewQueueConnection(m.client, handle.task.PrivateQueueName, ipc.WithTimeout(30*time.Second))
	if err != nil {
		return err
	}
	return privateConn.Put(msg)
}

// RegisterExit implements messages.Manager.
func (m *Manager) RegisterExit(trialID types.TrialID) {
	m.mu.Lock()
	handle, ok := m.trials[trialID]
	if ok {
		handle.exited = true
	}
	m.mu.Unlock()
}

// Running reports how many submitted trials have not yet exited.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, h := range m.trials {
		if !h.exited {
			n++
		}
	}
	return n
}

// StopOptimization raises the stop flag for every in-flight trial and
// waits up to patience for each one's future to resolve. Both backends
// always wait, see internal/manager/local's StopOptimization for the
// same decision.
func (m *Manager) StopOptimization(ctx context.Context, patience time.Duration) error {
	m.mu.Lock()
	handles := make([]*trialHandle, 0, len(m.trials))
	for _, h := range m.trials {
		if !h.exited {
			handles = append(handles, h)
		}
	}
	m.mu.Unlock()

	for _, h := range handles {
		if err := m.client.Variable(h.task.StopFlagName).Set(ctx, []byte(stopFlagRequest)); err != nil {
			log.Warn("distributed: failed to raise stop flag", "error", err)
		}
	}

	deadline := time.Now().Add(patience)
	for _, h := range handles {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		waitCtx, cancel := context.WithTimeout(ctx, remaining)
		err := h.future.Wait(waitCtx)
		cancel()
		if err != nil {
			log.Warn("distributed: trial did not stop within patience", "error", err)
			return manager.ErrStopTimeout
		}
	}
	return nil
}

func (m *Manager) Close() error {
	return m.publicConn.Close()
}

var _ manager.Manager = (*Manager)(nil)
