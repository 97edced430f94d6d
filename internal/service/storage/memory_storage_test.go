package storage

import "testing"

func TestDirtyTracking(t *testing.T) {
	var s Storage[string, int] = NewMemoryStorage[string, int]()

	s.Set("a", 1)
	s.Set("b", 2)

	dirty := s.GetDirty()
	if len(dirty) != 2 || dirty["a"] != 1 || dirty["b"] != 2 {
		t.Fatalf("dirty got %v, want a=1 b=2", dirty)
	}

	s.ClearDirty([]string{"a"})
	dirty = s.GetDirty()
	if len(dirty) != 1 || dirty["b"] != 2 {
		t.Errorf("dirty after clear got %v, want b=2", dirty)
	}

	// deleted keys have nothing left to persist
	s.Delete("b")
	if len(s.GetDirty()) != 0 {
		t.Errorf("dirty after delete got %v", s.GetDirty())
	}
	if s.Count() != 1 {
		t.Errorf("count got %d, want 1", s.Count())
	}
}

func TestForEachStops(t *testing.T) {
	s := NewMemoryStorage[int, int]()
	for i := 0; i < 10; i++ {
		s.Set(i, i)
	}

	visited := 0
	s.ForEach(func(k, v int) bool {
		visited++
		return visited < 3
	})
	if visited != 3 {
		t.Errorf("visited %d, want 3", visited)
	}
}
