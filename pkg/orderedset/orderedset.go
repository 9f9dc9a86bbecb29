package orderedset

// Set is an insertion-ordered set. Membership tests are O(1) and Values
// returns elements in the order they were first added.
// It is not safe for concurrent use.
type Set[T comparable] struct {
	index map[T]struct{}
	items []T
}

// New creates a Set seeded with the given values, in order.
func New[T comparable](values ...T) *Set[T] {
	s := &Set[T]{index: make(map[T]struct{}, len(values))}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts v if it is not already present and reports whether it was added.
func (s *Set[T]) Add(v T) bool {
	if s.index == nil {
		s.index = make(map[T]struct{})
	}
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}

// Contains reports whether v is in the set.
func (s *Set[T]) Contains(v T) bool {
	_, ok := s.index[v]
	return ok
}

// Len returns the number of elements.
func (s *Set[T]) Len() int {
	return len(s.items)
}

// Values returns a copy of the elements in first-insertion order.
func (s *Set[T]) Values() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}
