package distributed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trialmesh/trialmesh/internal/cancellation"
	"github.com/trialmesh/trialmesh/internal/cluster"
	"github.com/trialmesh/trialmesh/internal/ipc"
	"github.com/trialmesh/trialmesh/internal/messages"
	"github.com/trialmesh/trialmesh/internal/trial"
	"github.com/trialmesh/trialmesh/pkg/types"
)

// Task state values exchanged over a cluster.Variable. Waiting->Running is
// a compare-and-swap: whichever worker observes Waiting first claims the
// trial, which is how duplicate dispatch of the same task is made safe
// (spec.md's dedup Open Question, resolved in DESIGN.md).
const (
	TaskStateWaiting = "waiting"
	TaskStateRunning = "running"
	TaskStateDone    = "done"
)

// Stop flag values. "0" means keep going, "1" means the manager has asked
// this trial to stop.
const (
	stopFlagClear   = "0"
	stopFlagRequest = "1"
)

var stopPollInterval = 50 * time.Millisecond

// errInterrupted is returned when the task was cancelled cooperatively
// (the stop flag fired) before it delivered any closing message. Per
// spec.md §4.5 step 3, an injected interrupt posts nothing itself, the
// caller's future observer (manager.go's watchFuture) registers the exit
// and publishes the anonymous-exit heartbeat on this function's behalf.
var errInterrupted = errors.New("distributable: interrupted")

// Distributable is the worker-side entry point for one distributed trial,
// run wherever the cluster schedules task, a goroutine for the in-process
// LocalClient, or a standalone worker process for the gRPC transport. It
// claims the task, runs objective against a Trial proxy wired to the
// task's public/private queues, and reports the outcome back onto the
// public queue exactly as local.Manager does onto its in-memory pipe.
//
// A nil return means a closing message (Completed, Pruned, or Failed) was
// successfully put on the public queue; a non-nil return means the task
// exited without ever delivering one, claim/queue setup failed, the
// Put itself failed, or a cooperative interrupt landed, so the caller's
// future observer must synthesize the trial's exit instead.
func Distributable(ctx context.Context, client cluster.Client, task cluster.TaskContext, publicQueueName string, objective trial.Objective) error {
	taskState := client.Variable(task.TaskStateName)
	current, err := taskState.Get(ctx)
	if err != nil {
		return fmt.Errorf("distributable: read task state: %w", err)
	}
	if string(current) != TaskStateWaiting {
		// Already claimed by another dispatch of the same task; this is
		// the duplicate-dispatch case, not an error.
		return nil
	}
	if err := taskState.Set(ctx, []byte(TaskStateRunning)); err != nil {
		return fmt.Errorf("distributable: claim task: %w", err)
	}

	token := cancellation.New()
	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	go pollStopFlag(monitorCtx, client.Variable(task.StopFlagName), token)

	objCtx, cancelObj := context.WithCancel(ctx)
	defer cancelObj()
	go func() {
		select {
		case <-token.Done():
			cancelObj()
		case <-objCtx.Done():
		}
	}()

	publicConn, err := ipc.NewQueueConnection(client, publicQueueName, ipc.WithTimeout(5*time.Second))
	if err != nil {
		return fmt.Errorf("distributable: public queue: %w", err)
	}
	privateConn, err := ipc.NewQueueConnection(client, task.PrivateQueueName, ipc.WithTimeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("distributable: private queue: %w", err)
	}
	conn := ipc.NewDuplexQueueConnection(publicConn, privateConn)

	t := trial.New(types.TrialID(task.TrialID), conn)
	values, objErr := invoke(objCtx, objective, t)

	if token.Cancelled() {
		_ = taskState.Set(context.Background(), []byte(TaskStateDone))
		return errInterrupted
	}

	var final messages.Message
	switch {
	case errors.Is(objErr, trial.ErrPruned):
		final = messages.NewPruned(t.Number(), objErr.Error())
	case objErr != nil:
		final = messages.NewFailed(t.Number(), objErr)
	default:
		final = messages.NewCompleted(t.Number(), values)
	}
	if err := conn.Put(final); err != nil {
		return fmt.Errorf("distributable: report outcome: %w", err)
	}

	_ = taskState.Set(context.Background(), []byte(TaskStateDone))
	return nil
}

// invoke runs objective, converting a panic into an error the same way
// manager/local's invoke converts a panicking objective into a Failed
// message instead of crashing the process.
func invoke(ctx context.Context, objective trial.Objective, t *trial.Trial) (values []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("manager/distributed: objective panicked: %v", r)
		}
	}()
	return objective(ctx, t)
}

// pollStopFlag cancels token once flag reads stopFlagRequest. It exits
// when ctx is cancelled (the task finished on its own) without ever
// observing a stop request.
func pollStopFlag(ctx context.Context, flag cluster.Variable, token *cancellation.Token) {
	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			value, err := flag.Get(ctx)
			if err == nil && string(value) == stopFlagRequest {
				token.Cancel()
				return
			}
		}
	}
}
