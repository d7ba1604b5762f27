package runs

import (
	"context"
	"sync"
	"time"

	"github.com/use-agent/apptrelay/models"
)

// Store is an in-memory registry of runs. It is safe for concurrent use and
// hands out copies, so callers never observe a run mid-update.
type Store struct {
	mu         sync.RWMutex
	runs       map[string]*models.Run
	maxEntries int
	retain     time.Duration
}

// NewStore creates a store holding at most maxEntries runs. Finished runs
// older than retain are removed by Sweep.
func NewStore(maxEntries int, retain time.Duration) *Store {
	if maxEntries <= 0 {
		maxEntries = 500
	}
	return &Store{
		runs:       make(map[string]*models.Run),
		maxEntries: maxEntries,
		retain:     retain,
	}
}

// Put stores a run. At capacity the oldest finished run is evicted; queued
// and running runs are never evicted.
func (s *Store) Put(run *models.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.runs) >= s.maxEntries {
		s.evictOldestFinished()
	}
	s.runs[run.ID] = run
}

// Update applies fn to the stored run under the lock. It reports whether
// the run exists.
func (s *Store) Update(id string, fn func(*models.Run)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return false
	}
	fn(run)
	return true
}

// Get returns a copy of the run.
func (s *Store) Get(id string) (models.Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return models.Run{}, false
	}
	return *run, true
}

// Delete removes a run.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.runs, id)
	s.mu.Unlock()
}

// Len returns the number of stored runs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// Sweep removes finished runs that finished before now-retain and returns
// how many were removed.
func (s *Store) Sweep(now time.Time) int {
	if s.retain <= 0 {
		return 0
	}
	cutoff := now.Add(-s.retain)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, run := range s.runs {
		if run.Finished() && run.FinishedAt != nil && run.FinishedAt.Before(cutoff) {
			delete(s.runs, id)
			removed++
		}
	}
	return removed
}

// cleanupLoop sweeps expired runs every 5 minutes until ctx is done.
func (s *Store) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

func (s *Store) evictOldestFinished() {
	var (
		oldestID string
		oldestAt time.Time
	)
	for id, run := range s.runs {
		if !run.Finished() || run.FinishedAt == nil {
			continue
		}
		if oldestID == "" || run.FinishedAt.Before(oldestAt) {
			oldestID, oldestAt = id, *run.FinishedAt
		}
	}
	if oldestID != "" {
		delete(s.runs, oldestID)
	}
}
