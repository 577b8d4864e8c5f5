package store

import (
	"slices"
	"sort"
	"sync"
	"time"

	"pvyield_simulator/internal/scenario"
)

// DefaultMaxBatches bounds how many finished batches a Store keeps.
const DefaultMaxBatches = 50

// Summary is a lightweight listing entry for a finished batch.
type Summary struct {
	ID        string        `json:"id"`
	Started   time.Time     `json:"started"`
	Elapsed   time.Duration `json:"elapsed"`
	Scenarios int           `json:"scenarios"`
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	System    string        `json:"system_name"`
}

// Store holds finished scenario batches in memory, indexed by batch ID and
// ordered by start time. The oldest batch is dropped once the limit is hit.
type Store struct {
	mu      sync.RWMutex
	limit   int
	byID    map[string]*scenario.Batch
	ordered []*scenario.Batch // sorted by Started
}

func New(limit int) *Store {
	if limit <= 0 {
		limit = DefaultMaxBatches
	}
	return &Store{
		limit: limit,
		byID:  make(map[string]*scenario.Batch),
	}
}

// Add records a batch, replacing any batch with the same ID.
func (s *Store) Add(b *scenario.Batch) {
	if b == nil {
		return
	}
	c := clone(b)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[c.ID]; ok {
		s.ordered = slices.DeleteFunc(s.ordered, func(x *scenario.Batch) bool { return x.ID == c.ID })
	}
	s.byID[c.ID] = c
	idx := sort.Search(len(s.ordered), func(i int) bool {
		return s.ordered[i].Started.After(c.Started)
	})
	s.ordered = slices.Insert(s.ordered, idx, c)

	for len(s.ordered) > s.limit {
		delete(s.byID, s.ordered[0].ID)
		s.ordered = s.ordered[1:]
	}
}

// Get returns a copy of the batch with the given ID.
func (s *Store) Get(id string) (*scenario.Batch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return clone(b), true
}

// List returns summaries of all stored batches, newest first.
func (s *Store) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.ordered))
	for i := len(s.ordered) - 1; i >= 0; i-- {
		out = append(out, summarize(s.ordered[i]))
	}
	return out
}

// StartedBetween returns summaries of batches started in [start, end), oldest first.
func (s *Store) StartedBetween(start, end time.Time) []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from := sort.Search(len(s.ordered), func(i int) bool {
		return !s.ordered[i].Started.Before(start)
	})
	to := sort.Search(len(s.ordered), func(i int) bool {
		return !s.ordered[i].Started.Before(end)
	})
	if from >= to {
		return nil
	}
	out := make([]Summary, 0, to-from)
	for _, b := range s.ordered[from:to] {
		out = append(out, summarize(b))
	}
	return out
}

// Len returns the number of stored batches.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ordered)
}

// clone copies the batch and its result slice. Results are never mutated
// after a run, so the pointers are shared.
func clone(b *scenario.Batch) *scenario.Batch {
	c := *b
	c.Config = b.Config.Clone()
	c.Results = slices.Clone(b.Results)
	return &c
}

func summarize(b *scenario.Batch) Summary {
	return Summary{
		ID:        b.ID,
		Started:   b.Started,
		Elapsed:   b.Elapsed,
		Scenarios: len(b.Results),
		Latitude:  b.Config.Latitude,
		Longitude: b.Config.Longitude,
		System:    b.Config.SystemName,
	}
}
