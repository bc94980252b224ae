package resourcespan

import "sync"

// syncMap is a typed view over sync.Map. Removal goes through LoadAndDelete so
// that exactly one caller observes a given entry leaving the map.
type syncMap[K comparable, V any] struct {
	m sync.Map
}

func (s *syncMap[K, V]) Load(k K) (V, bool) {
	v, ok := s.m.Load(k)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

func (s *syncMap[K, V]) Store(k K, v V) {
	s.m.Store(k, v)
}

func (s *syncMap[K, V]) Swap(k K, v V) (V, bool) {
	prev, loaded := s.m.Swap(k, v)
	if !loaded {
		var zero V
		return zero, false
	}
	return prev.(V), true
}

func (s *syncMap[K, V]) Delete(k K) {
	s.m.Delete(k)
}

func (s *syncMap[K, V]) LoadAndDelete(k K) (V, bool) {
	v, ok := s.m.LoadAndDelete(k)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

func (s *syncMap[K, V]) Range(fn func(k K, v V) bool) {
	s.m.Range(func(k, v any) bool {
		return fn(k.(K), v.(V))
	})
}

func (s *syncMap[K, V]) Keys() []K {
	var keys []K
	s.m.Range(func(k, _ any) bool {
		keys = append(keys, k.(K))
		return true
	})
	return keys
}

func (s *syncMap[K, V]) LoadOrStore(k K, v V) (V, bool) {
	actual, loaded := s.m.LoadOrStore(k, v)
	return actual.(V), loaded
}

func (s *syncMap[K, V]) CompareAndDelete(k K, old V) bool {
	return s.m.CompareAndDelete(k, old)
}

func (s *syncMap[K, V]) Len() int {
	n := 0
	s.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
