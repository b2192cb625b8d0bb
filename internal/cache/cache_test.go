package cache

import (
	"testing"
	"time"
)

func TestTTLCache_GetSet(t *testing.T) {
	c := New[string](10, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get on empty cache reported a hit")
	}

	c.Set("a", "alpha")
	got, ok := c.Get("a")
	if !ok || got != "alpha" {
		t.Errorf("Get = %q, %v, want alpha, true", got, ok)
	}

	c.Set("a", "updated")
	got, _ = c.Get("a")
	if got != "updated" {
		t.Errorf("Get after overwrite = %q, want updated", got)
	}
	if c.Size() != 1 {
		t.Errorf("Size = %d, want 1 after overwrite", c.Size())
	}
}

func TestTTLCache_EvictsLeastRecentlyTouched(t *testing.T) {
	c := New[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a is now most recently touched
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("least recently touched entry survived eviction")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("recently touched entry was evicted")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("new entry missing")
	}
}

func TestTTLCache_OverwriteDoesNotEvict(t *testing.T) {
	c := New[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 3) // overwrite keeps the table at capacity

	if _, ok := c.Get("b"); !ok {
		t.Error("entry evicted by an overwrite")
	}
	if got, _ := c.Get("a"); got != 3 {
		t.Errorf("Get = %d, want 3", got)
	}
}

func TestTTLCache_TTLExpiry(t *testing.T) {
	c := New[int](10, 10*time.Millisecond)

	c.Set("a", 1)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("fresh entry missing")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("expired entry still readable")
	}
	if c.Size() != 0 {
		t.Errorf("Size = %d, want 0 after lazy expiry", c.Size())
	}
}

func TestTTLCache_Delete(t *testing.T) {
	c := New[int](10, time.Minute)

	c.Set("a", 1)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("deleted entry still readable")
	}
	// Deleting a missing key is a no-op.
	c.Delete("missing")
}

func TestTTLCache_CleanExpired(t *testing.T) {
	c := New[int](10, 10*time.Millisecond)

	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(20 * time.Millisecond)
	c.Set("fresh", 3)

	if removed := c.CleanExpired(); removed != 2 {
		t.Errorf("CleanExpired = %d, want 2", removed)
	}
	if c.Size() != 1 {
		t.Errorf("Size = %d, want 1", c.Size())
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry removed by cleanup")
	}
}
