package cache

import (
	"context"
	"testing"
	"time"
)

func TestStore_SetGet(t *testing.T) {
	s := New[string]("test", 0, 0)
	s.Set("a", "1")
	v, ok := s.Get("a")
	if !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v; want 1, true", v, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Fatal("Get(missing) = true; want false")
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	s := New[int]("test", 0, 10*time.Millisecond)
	s.Set("a", 42)
	if _, ok := s.Get("a"); !ok {
		t.Fatal("expected hit immediately after Set")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := s.Get("a"); ok {
		t.Fatal("expected miss after ttl expiry")
	}
	if s.Size() != 0 {
		t.Fatalf("Size() = %d after expired Get; want 0 (lazy removal on read)", s.Size())
	}
}

func TestStore_LRUEviction(t *testing.T) {
	s := New[int]("test", 2, 0)
	s.Set("a", 1)
	s.Set("b", 2)
	s.Get("a") // a is now most-recently-used; b is least
	s.Set("c", 3)

	if _, ok := s.Get("b"); ok {
		t.Fatal("expected b to be evicted as least-recently-used")
	}
	if _, ok := s.Get("a"); !ok {
		t.Fatal("expected a to survive eviction")
	}
	if _, ok := s.Get("c"); !ok {
		t.Fatal("expected c to be present")
	}
	if s.Size() != 2 {
		t.Fatalf("Size() = %d; want 2", s.Size())
	}
}

func TestStore_Has_DoesNotReorder(t *testing.T) {
	s := New[int]("test", 2, 0)
	s.Set("a", 1)
	s.Set("b", 2)
	s.Has("a")
	s.Set("c", 3)

	if _, ok := s.Get("a"); ok {
		t.Fatal("expected a to be evicted since Has() must not affect LRU order")
	}
}

func TestStore_Delete(t *testing.T) {
	s := New[int]("test", 0, 0)
	s.Set("a", 1)
	s.Delete("a")
	if _, ok := s.Get("a"); ok {
		t.Fatal("expected miss after Delete")
	}
}

func TestStore_Clear(t *testing.T) {
	s := New[int]("test", 0, 0)
	s.Set("a", 1)
	s.Set("b", 2)
	s.Clear()
	if s.Size() != 0 {
		t.Fatalf("Size() = %d after Clear; want 0", s.Size())
	}
}

func TestStore_StartCleanup_RemovesExpired(t *testing.T) {
	s := New[int]("test", 0, 10*time.Millisecond)
	s.Set("a", 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartCleanup(ctx, 15*time.Millisecond)

	time.Sleep(60 * time.Millisecond)

	s.mu.RLock()
	size := s.ll.Len()
	s.mu.RUnlock()
	if size != 0 {
		t.Fatalf("expected background sweep to remove expired entry, got %d remaining", size)
	}
}
