package study

import (
	"sort"
	"sync"

	"github.com/trialmesh/trialmesh/pkg/types"
)

// Storage persists trials. Study serializes every call through its own
// mutex, so implementations do not need to be safe for unsynchronized
// concurrent use by themselves, InMemoryStorage adds its own locking
// anyway, since nothing stops a Storage from being handed to more than one
// Study in tests.
type Storage interface {
	CreateTrial() *TrialRecord
	GetTrial(id types.TrialID) (*TrialRecord, bool)
	AllTrials() []*TrialRecord
	Close() error
}

// InMemoryStorage is the reference Storage implementation: a map guarded by
// a mutex and a monotonic trial-id counter. Grounded on the teacher's
// JobManager map-of-state-plus-mutex shape, adapted from job records to
// trial records.
type InMemoryStorage struct {
	mu     sync.Mutex
	trials map[types.TrialID]*TrialRecord
	nextID int64
}

// NewInMemoryStorage builds an empty in-memory trial store.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{trials: make(map[types.TrialID]*TrialRecord)}
}

func (s *InMemoryStorage) CreateTrial() *TrialRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := types.TrialID(s.nextID)
	number := s.nextID
	s.nextID++
	rec := newTrialRecord(id, number)
	s.trials[id] = rec
	return rec
}

func (s *InMemoryStorage) GetTrial(id types.TrialID) (*TrialRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.trials[id]
	return rec, ok
}

func (s *InMemoryStorage) AllTrials() []*TrialRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*TrialRecord, 0, len(s.trials))
	for _, rec := range s.trials {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (s *InMemoryStorage) Close() error { return nil }
