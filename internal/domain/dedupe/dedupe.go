// Package dedupe tracks identifiers that were already seen.
package dedupe

import (
	"container/list"
	"sync"
)

// Deduper records seen IDs.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(id string) bool

	// Unrecord forgets id so that it is treated as new again.
	Unrecord(id string)

	Size() int64
}

// Set implements Deduper with a map and an insertion-ordered list used for
// oldest-first eviction in bounded mode.
type Set struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
}

// New creates an unbounded Set unless WithMaxSize says otherwise.
func New(opts ...Option) *Set {
	s := &Set{}
	for _, opt := range opts {
		opt(s)
	}
	s.seen = make(map[string]*list.Element)
	s.order = list.New()
	return s
}

// SeenAndRecord implements Deduper.
func (s *Set) SeenAndRecord(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[id]; ok {
		return true
	}
	if s.maxSize > 0 && len(s.seen) >= s.maxSize {
		s.evictOldest()
	}
	s.seen[id] = s.order.PushBack(id)
	return false
}

// Unrecord implements Deduper.
func (s *Set) Unrecord(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.seen[id]; ok {
		s.order.Remove(el)
		delete(s.seen, id)
	}
}

// Size returns the number of remembered IDs.
func (s *Set) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.seen))
}

// evictOldest must be called with s.mu held.
func (s *Set) evictOldest() {
	front := s.order.Front()
	if front == nil {
		return
	}
	s.order.Remove(front)
	delete(s.seen, front.Value.(string))
}
