package orchestrator

import (
	"sort"
	"sync"
	"time"

	"github.com/kestrelworks/oppintel/internal/contracts"
)

// activeStore holds the active opportunity working set. Reads are
// concurrent; the only writer is the orchestrator's cycle path, which
// applies results as a single batch so readers never observe a
// partially-applied cycle.
type activeStore struct {
	mu   sync.RWMutex
	data map[string]contracts.ScoredOpportunity
}

func newActiveStore() *activeStore {
	return &activeStore{
		data: make(map[string]contracts.ScoredOpportunity),
	}
}

// applyBatch upserts a cycle's qualifying opportunities. A rediscovered
// id keeps its original FirstSeen; score and payload refresh.
func (s *activeStore) applyBatch(batch []contracts.ScoredOpportunity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, scored := range batch {
		if existing, ok := s.data[scored.ID]; ok {
			scored.FirstSeen = existing.FirstSeen
		}
		s.data[scored.ID] = scored
	}
}

// sweepOlderThan removes entries whose LastSeen predates the cutoff
// and returns the removed ids
func (s *activeStore) sweepOlderThan(maxAge time.Duration, now time.Time) []string {
	if maxAge <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-maxAge)
	removed := []string{}
	for id, scored := range s.data {
		if scored.LastSeen.Before(cutoff) {
			delete(s.data, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// all returns copies of every entry, sorted descending by score
func (s *activeStore) all() []contracts.ScoredOpportunity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contracts.ScoredOpportunity, 0, len(s.data))
	for _, scored := range s.data {
		out = append(out, scored)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	return out
}

// get returns one entry by id
func (s *activeStore) get(id string) (contracts.ScoredOpportunity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scored, ok := s.data[id]
	return scored, ok
}

// remove deletes one entry by id
func (s *activeStore) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[id]; !ok {
		return false
	}
	delete(s.data, id)
	return true
}

// stats summarizes the working set
func (s *activeStore) stats() (count int, avgScore float64, highCount int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count = len(s.data)
	if count == 0 {
		return 0, 0, 0
	}

	sum := 0
	for _, scored := range s.data {
		sum += scored.Score
		if scored.Score >= 80 {
			highCount++
		}
	}
	avgScore = float64(sum) / float64(count)

	return count, avgScore, highCount
}
