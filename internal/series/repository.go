package series

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Repository holds one TimeSeries per category key. Series are immutable
// once stored, so concurrent readers need no coordination beyond the map
// lock guarding registration.
type Repository struct {
	mu     sync.RWMutex
	series map[ID]*TimeSeries
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{series: make(map[ID]*TimeSeries)}
}

// Put registers a series under the given key. The series must pass
// Validate; a key may only be registered once.
func (r *Repository) Put(id ID, s *TimeSeries) error {
	if id == "" {
		return fmt.Errorf("series id must not be empty")
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("series %s: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.series[id]; exists {
		return fmt.Errorf("series %s already registered", id)
	}
	r.series[id] = s
	return nil
}

// Get returns the series for the given key.
func (r *Repository) Get(id ID) (*TimeSeries, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.series[id]
	return s, ok
}

// Slice returns the observations of a series within the inclusive
// timestamp range [from, to].
func (r *Repository) Slice(id ID, from, to time.Time) (*TimeSeries, error) {
	s, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("series %s not found", id)
	}
	return s.SliceRange(from, to), nil
}

// IDs returns all registered keys in sorted order so batch runs iterate
// deterministically.
func (r *Repository) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]ID, 0, len(r.series))
	for id := range r.series {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of registered series.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.series)
}
