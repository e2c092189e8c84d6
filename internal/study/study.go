// Package study is the reference stand-in for the external collaborator
// spec.md treats as out of scope: a synchronous sampler + pruner +
// persistent trial store, accessed only from the event-loop goroutine. It
// exists so the dispatch core can be built and tested end-to-end; a real
// deployment would swap Storage/Sampler/Pruner for bindings onto an actual
// tuning library, the way the teacher repo's Controller sits on top of a
// real JobManager + WAL rather than a mock.
package study

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/trialmesh/trialmesh/pkg/types"
)

// RunState is the trial's optimization outcome, as distinct from
// types.TrialState (the manager-side channel lifecycle).
type RunState string

const (
	RunStateRunning  RunState = "running"
	RunStateComplete RunState = "complete"
	RunStatePruned   RunState = "pruned"
	RunStateFail     RunState = "fail"
)

// Direction selects whether a smaller or larger objective value is better.
type Direction int

const (
	Minimize Direction = iota
	Maximize
)

var (
	ErrTrialNotFound    = errors.New("study: trial not found")
	ErrNoCompletedTrial = errors.New("study: no trial has completed yet")
)

// TrialRecord is the persisted state of one trial. Access is always
// mediated by Study's mutex; TrialRecord itself holds no lock.
type TrialRecord struct {
	ID                  types.TrialID
	Number              int64
	Params              map[string]any
	Distributions       map[string]types.Distribution
	UserAttrs           map[string]any
	SystemAttrs         map[string]any
	Values              []float64
	IntermediateValues  map[int64]float64
	State               RunState
	FailureReason       string
	DatetimeStart       time.Time
	DatetimeComplete    *time.Time
}

func newTrialRecord(id types.TrialID, number int64) *TrialRecord {
	return &TrialRecord{
		ID:                 id,
		Number:             number,
		Params:             make(map[string]any),
		Distributions:      make(map[string]types.Distribution),
		UserAttrs:          make(map[string]any),
		SystemAttrs:        make(map[string]any),
		IntermediateValues: make(map[int64]float64),
		State:              RunStateRunning,
		DatetimeStart:      time.Now(),
	}
}

func (r *TrialRecord) summary() types.TrialSummary {
	return types.TrialSummary{
		Number:        r.Number,
		Params:        cloneAnyMap(r.Params),
		Distributions: cloneDistMap(r.Distributions),
		UserAttrs:     cloneAnyMap(r.UserAttrs),
		SystemAttrs:   cloneAnyMap(r.SystemAttrs),
		DatetimeStart: r.DatetimeStart,
	}
}

func cloneAnyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneDistMap(m map[string]types.Distribution) map[string]types.Distribution {
	out := make(map[string]types.Distribution, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Study coordinates a Sampler, a Pruner and a Storage under a single mutex,
// exactly as spec.md requires: the study is touched only from the
// event-loop goroutine, so the mutex here is a correctness belt, not a
// concurrency mechanism.
type Study struct {
	mu        sync.Mutex
	storage   Storage
	sampler   Sampler
	pruner    Pruner
	direction Direction
	closed    bool
}

// New builds a Study over the given collaborators. A nil sampler/pruner/
// storage is replaced with the bundled in-memory reference implementation.
func New(direction Direction, storage Storage, sampler Sampler, pruner Pruner) *Study {
	if storage == nil {
		storage = NewInMemoryStorage()
	}
	if sampler == nil {
		sampler = NewRandomSampler(0)
	}
	if pruner == nil {
		pruner = NopPruner{}
	}
	return &Study{storage: storage, sampler: sampler, pruner: pruner, direction: direction}
}

// CreateTrial asks storage to mint a new trial and returns its ID. This is
// the only way a TrialID ever comes into existence: the pairing between a
// worker task and its trial is immutable from here on.
func (s *Study) CreateTrial() types.TrialID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storage.CreateTrial().ID
}

func (s *Study) get(id types.TrialID) (*TrialRecord, error) {
	rec, ok := s.storage.GetTrial(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrTrialNotFound, id)
	}
	return rec, nil
}

// SuggestFloat samples a float parameter for the given trial.
func (s *Study) SuggestFloat(id types.TrialID, name string, dist types.Distribution) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.get(id)
	if err != nil {
		return 0, err
	}
	v, err := s.sampler.SampleFloat(rec, name, dist)
	if err != nil {
		return 0, err
	}
	rec.Params[name] = v
	rec.Distributions[name] = dist
	return v, nil
}

// SuggestInt samples an int parameter for the given trial.
func (s *Study) SuggestInt(id types.TrialID, name string, dist types.Distribution) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.get(id)
	if err != nil {
		return 0, err
	}
	v, err := s.sampler.SampleInt(rec, name, dist)
	if err != nil {
		return 0, err
	}
	rec.Params[name] = v
	rec.Distributions[name] = dist
	return v, nil
}

// SuggestCategorical samples a categorical parameter for the given trial.
func (s *Study) SuggestCategorical(id types.TrialID, name string, dist types.Distribution) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.get(id)
	if err != nil {
		return nil, err
	}
	v, err := s.sampler.SampleCategorical(rec, name, dist)
	if err != nil {
		return nil, err
	}
	rec.Params[name] = v
	rec.Distributions[name] = dist
	return v, nil
}

// Report records an intermediate value for a step on the trial.
func (s *Study) Report(id types.TrialID, value float64, step int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.get(id)
	if err != nil {
		return err
	}
	rec.IntermediateValues[step] = value
	return nil
}

// ShouldPrune asks the pruner whether the trial should be pruned now.
func (s *Study) ShouldPrune(id types.TrialID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.get(id)
	if err != nil {
		return false, err
	}
	return s.pruner.ShouldPrune(rec)
}

// SetUserAttr sets a user-namespaced attribute.
func (s *Study) SetUserAttr(id types.TrialID, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.get(id)
	if err != nil {
		return err
	}
	rec.UserAttrs[key] = value
	return nil
}

// SetSystemAttr sets a system-namespaced attribute.
func (s *Study) SetSystemAttr(id types.TrialID, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.get(id)
	if err != nil {
		return err
	}
	rec.SystemAttrs[key] = value
	return nil
}

// Tell finalizes a trial as complete. If skipIfFinished is true and the
// trial has already reached a terminal state, Tell is a silent no-op
// success, this mirrors optuna's tell(..., skip_if_finished=true), used
// by the Completed message so a duplicate tell from a re-executed worker
// can't corrupt an already-finished trial.
func (s *Study) Tell(id types.TrialID, values []float64, skipIfFinished bool) (RunState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.get(id)
	if err != nil {
		return "", err
	}
	if skipIfFinished && rec.State != RunStateRunning {
		return rec.State, nil
	}
	rec.Values = values
	rec.State = RunStateComplete
	now := time.Now()
	rec.DatetimeComplete = &now
	return rec.State, nil
}

// MarkFailed finalizes a trial as failed.
func (s *Study) MarkFailed(id types.TrialID, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.get(id)
	if err != nil {
		return err
	}
	if rec.State != RunStateRunning {
		return nil
	}
	rec.State = RunStateFail
	if cause != nil {
		rec.FailureReason = cause.Error()
	}
	now := time.Now()
	rec.DatetimeComplete = &now
	return nil
}

// MarkPruned finalizes a trial as pruned.
func (s *Study) MarkPruned(id types.TrialID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.get(id)
	if err != nil {
		return err
	}
	if rec.State != RunStateRunning {
		return nil
	}
	rec.State = RunStatePruned
	now := time.Now()
	rec.DatetimeComplete = &now
	return nil
}

// Property answers one TrialProperty request.
func (s *Study) Property(id types.TrialID, tag types.PropertyTag) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.get(id)
	if err != nil {
		return nil, err
	}
	switch tag {
	case types.PropertyParams:
		return cloneAnyMap(rec.Params), nil
	case types.PropertyDistributions:
		return cloneDistMap(rec.Distributions), nil
	case types.PropertyUserAttrs:
		return cloneAnyMap(rec.UserAttrs), nil
	case types.PropertySystemAttrs:
		return cloneAnyMap(rec.SystemAttrs), nil
	case types.PropertyDatetimeStart:
		return rec.DatetimeStart, nil
	case types.PropertyNumber:
		return rec.Number, nil
	default:
		return nil, fmt.Errorf("study: unknown property tag %d", tag)
	}
}

// RunState returns the current outcome state of a trial.
func (s *Study) RunState(id types.TrialID) (RunState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.get(id)
	if err != nil {
		return "", err
	}
	return rec.State, nil
}

// Direction reports whether this study minimizes or maximizes its
// objective.
func (s *Study) Direction() Direction {
	return s.direction
}

// Trials returns a snapshot of every known trial, ordered by Number.
func (s *Study) Trials() []*TrialRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storage.AllTrials()
}

// BestTrial returns the best completed trial by objective direction.
func (s *Study) BestTrial() (*TrialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *TrialRecord
	for _, rec := range s.storage.AllTrials() {
		if rec.State != RunStateComplete || len(rec.Values) == 0 {
			continue
		}
		if best == nil {
			best = rec
			continue
		}
		if s.better(rec.Values[0], best.Values[0]) {
			best = rec
		}
	}
	if best == nil {
		return nil, ErrNoCompletedTrial
	}
	return best, nil
}

func (s *Study) better(candidate, incumbent float64) bool {
	if s.direction == Maximize {
		return candidate > incumbent
	}
	return candidate < incumbent
}

// Close releases the storage session. Safe to call more than once.
func (s *Study) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.storage.Close()
}
