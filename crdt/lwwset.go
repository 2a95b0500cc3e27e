package crdt

// LWWSet is an LWWMap with a unit value: a last-write-wins set where
// membership is decided by the same dominance rule as LWWMap (adds win on
// clock ties).
type LWWSet[T comparable, C any] struct {
	inner *LWWMap[T, struct{}, C]
}

// NewLWWSet constructs an empty set ordered by less.
func NewLWWSet[T comparable, C any](less func(a, b C) bool) *LWWSet[T, C] {
	return &LWWSet[T, C]{inner: NewLWWMap[T, struct{}, C](less, nil)}
}

// Insert adds value at the given clock.
func (s *LWWSet[T, C]) Insert(value T, clock C) {
	s.inner.Insert(value, struct{}{}, clock)
}

// Remove tombstones value at the given clock.
func (s *LWWSet[T, C]) Remove(value T, clock C) {
	s.inner.Remove(value, clock)
}

// Contains reports whether value is currently a live member.
func (s *LWWSet[T, C]) Contains(value T) bool {
	return s.inner.ContainsKey(value)
}

// Len returns the number of live members.
func (s *LWWSet[T, C]) Len() int { return s.inner.Len() }

// Range calls fn for every live member, in unspecified order.
func (s *LWWSet[T, C]) Range(fn func(value T)) {
	s.inner.Range(func(key T, _ struct{}) { fn(key) })
}

// Join merges other into a new set (spec.md I7: commutative, associative,
// idempotent).
func (s *LWWSet[T, C]) Join(other *LWWSet[T, C]) *LWWSet[T, C] {
	return &LWWSet[T, C]{inner: s.inner.Join(other.inner)}
}
