package cache

import "testing"

func TestLRUGetPutHitsMisses(t *testing.T) {
	c := NewLRU[string, int](2)

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put("a", 1)
	c.Put("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v", v, ok)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRU[int, string](2)
	c.Put(1, "one")
	c.Put(2, "two")
	// touch 1 so it's most recently used; 2 becomes the eviction candidate
	c.Get(1)
	c.Put(3, "three")

	if _, ok := c.Get(2); ok {
		t.Fatal("expected key 2 to be evicted")
	}
	if v, ok := c.Get(1); !ok || v != "one" {
		t.Fatalf("expected key 1 to survive, got %v %v", v, ok)
	}
	if v, ok := c.Get(3); !ok || v != "three" {
		t.Fatalf("expected key 3 present, got %v %v", v, ok)
	}
}

func TestLRUZeroCapacityDisablesStorage(t *testing.T) {
	c := NewLRU[string, int](0)
	c.Put("a", 1)
	if _, ok := c.Get("a"); ok {
		t.Fatal("zero-capacity cache should never retain entries")
	}
}
