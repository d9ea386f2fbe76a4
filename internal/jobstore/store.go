package jobstore

import "sync"

// Delta describes the minimal change a Store mutation produced, so an
// observer can incrementally reconcile instead of re-rendering the
// whole list (§4.5).
type Delta struct {
	Added   []string
	Updated []string
	Removed []string
}

// Store is the in-memory, insertion-ordered map of jobs keyed by id.
// Every method takes the store's lock, so it may be mutated from several
// goroutines: the Orchestrator's URL processors and workers call Add and
// Update directly, and the AppController calls Remove. Writers are not
// restricted to a single caller. Readers should use Snapshot or Get,
// both of which hand out defensive copies.
type Store struct {
	mu      sync.RWMutex
	order   []string
	byID    map[string]*Job
	onChange func(Delta)
}

// New creates an empty Store. onChange, if non-nil, is invoked
// synchronously after every mutation with the delta it produced.
func New(onChange func(Delta)) *Store {
	return &Store{
		byID:     make(map[string]*Job),
		onChange: onChange,
	}
}

// Add appends a new job, preserving insertion order.
func (s *Store) Add(j *Job) {
	s.mu.Lock()
	s.byID[j.ID] = j
	s.order = append(s.order, j.ID)
	s.mu.Unlock()

	s.notify(Delta{Added: []string{j.ID}})
}

// Update mutates the job with the given id under the store's lock and
// reports it as changed. It is a no-op if the id is unknown.
func (s *Store) Update(id string, fn func(*Job)) {
	s.mu.Lock()
	j, ok := s.byID[id]
	if ok {
		fn(j)
	}
	s.mu.Unlock()

	if ok {
		s.notify(Delta{Updated: []string{id}})
	}
}

// Remove deletes jobs by id, compacting the order slice.
func (s *Store) Remove(ids ...string) {
	if len(ids) == 0 {
		return
	}

	s.mu.Lock()
	removed := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.byID[id]; ok {
			delete(s.byID, id)
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		newOrder := s.order[:0:0]
		for _, id := range s.order {
			if _, gone := s.byID[id]; gone {
				newOrder = append(newOrder, id)
			}
		}
		s.order = newOrder
	}
	s.mu.Unlock()

	if len(removed) > 0 {
		s.notify(Delta{Removed: removed})
	}
}

// Clear removes every job from the store and returns the ids removed.
func (s *Store) Clear() []string {
	s.mu.Lock()
	removed := make([]string, len(s.order))
	copy(removed, s.order)
	s.byID = make(map[string]*Job)
	s.order = nil
	s.mu.Unlock()

	if len(removed) > 0 {
		s.notify(Delta{Removed: removed})
	}
	return removed
}

// Get returns a defensive copy of the job with the given id, or nil.
func (s *Store) Get(id string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.byID[id]
	if !ok {
		return nil
	}
	return j.Clone()
}

// Snapshot returns defensive copies of every job, in insertion order.
func (s *Store) Snapshot() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// IDsWithStatus returns the ids of jobs whose Status is among statuses.
func (s *Store) IDsWithStatus(statuses ...Status) []string {
	want := make(map[Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, id := range s.order {
		if want[s.byID[id].Status] {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of jobs currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *Store) notify(d Delta) {
	if s.onChange != nil {
		s.onChange(d)
	}
}
