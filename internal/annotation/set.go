package annotation

import (
	"maps"
	"slices"
	"sync"
)

// Set maps page numbers to the marks committed on them. Marks on a page are
// kept in Order, which is also their rendering order. A Set is safe for
// concurrent use; surfaces for different pages share one Set.
type Set struct {
	mu    sync.RWMutex
	pages map[int][]Annotation
	next  uint64
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{pages: make(map[int][]Annotation)}
}

// Add commits a mark, assigning it the next Order value, and returns the
// stored copy.
func (s *Set) Add(a Annotation) Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	a = a.Clone()
	a.Order = s.next
	s.pages[a.Page] = append(s.pages[a.Page], a)
	return a.Clone()
}

// Page returns a copy of the marks on page n in Order.
func (s *Set) Page(n int) []Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMarks(s.pages[n])
}

// ReplacePage swaps the marks on page n for marks in one step. An empty
// slice removes the page entry, leaving the page untouched.
func (s *Set) ReplacePage(n int, marks []Annotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(marks) == 0 {
		delete(s.pages, n)
		return
	}
	cp := cloneMarks(marks)
	for i := range cp {
		cp[i].Page = n
		if cp[i].Order > s.next {
			s.next = cp[i].Order
		}
	}
	sortByOrder(cp)
	s.pages[n] = cp
}

// RemoveLast retracts the newest mark on page n.
func (s *Set) RemoveLast(n int) (Annotation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	marks := s.pages[n]
	if len(marks) == 0 {
		return Annotation{}, false
	}
	last := marks[len(marks)-1]
	if len(marks) == 1 {
		delete(s.pages, n)
	} else {
		s.pages[n] = marks[:len(marks)-1]
	}
	return last, true
}

// Pages returns the page numbers that carry marks, ascending.
func (s *Set) Pages() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.pages))
}

// Len returns the total number of marks.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, marks := range s.pages {
		n += len(marks)
	}
	return n
}

// Snapshot returns a deep copy of the current contents. Later edits to the
// Set do not affect it.
func (s *Set) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int][]Annotation, len(s.pages))
	for n, marks := range s.pages {
		out[n] = cloneMarks(marks)
	}
	return Snapshot{pages: out}
}

// Restore replaces the whole contents with snap. Order values are kept and
// the counter moves past the highest one.
func (s *Set) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = make(map[int][]Annotation, len(snap.pages))
	for n, marks := range snap.pages {
		if len(marks) == 0 {
			continue
		}
		cp := cloneMarks(marks)
		for _, a := range cp {
			if a.Order > s.next {
				s.next = a.Order
			}
		}
		sortByOrder(cp)
		s.pages[n] = cp
	}
}

func cloneMarks(marks []Annotation) []Annotation {
	if marks == nil {
		return nil
	}
	out := make([]Annotation, len(marks))
	for i, a := range marks {
		out[i] = a.Clone()
	}
	return out
}

// Snapshot is a point-in-time, read-only copy of a Set.
type Snapshot struct {
	pages map[int][]Annotation
}

// NewSnapshot builds a Snapshot from loose marks, grouping them by page. The
// storage order of marks is irrelevant; Page always returns them in Order.
func NewSnapshot(marks []Annotation) Snapshot {
	out := make(map[int][]Annotation)
	for _, a := range marks {
		out[a.Page] = append(out[a.Page], a.Clone())
	}
	return Snapshot{pages: out}
}

// Page returns the marks on page n sorted by Order.
func (s Snapshot) Page(n int) []Annotation {
	marks := cloneMarks(s.pages[n])
	sortByOrder(marks)
	return marks
}

// Pages returns the page numbers with at least one mark, ascending.
func (s Snapshot) Pages() []int {
	var out []int
	for n, marks := range s.pages {
		if len(marks) > 0 {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return out
}

// Has reports whether page n carries marks.
func (s Snapshot) Has(n int) bool {
	return len(s.pages[n]) > 0
}

// Len returns the total number of marks.
func (s Snapshot) Len() int {
	n := 0
	for _, marks := range s.pages {
		n += len(marks)
	}
	return n
}

// All returns every mark ordered by page, then Order.
func (s Snapshot) All() []Annotation {
	var out []Annotation
	for _, n := range s.Pages() {
		out = append(out, s.Page(n)...)
	}
	return out
}
