package cache

import (
	"testing"
	"time"
)

func TestGetSetRoundTrip(t *testing.T) {
	c := New[string, int](10, time.Minute)
	c.Set("a", 1)
	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Fatalf("expected hit with value 1, got %v %v", v, ok)
	}
}

func TestExpiry(t *testing.T) {
	c := New[string, int](10, time.Millisecond)
	c.Set("a", 1)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Fatal("expected expired entry to be evicted on read")
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[int, int](2, time.Minute)
	c.Set(1, 1)
	c.Set(2, 2)
	c.Get(1) // touch 1, making 2 the oldest
	c.Set(3, 3)
	if _, ok := c.Get(2); ok {
		t.Fatal("expected entry 2 to be evicted as least recently touched")
	}
	if _, ok := c.Get(1); !ok {
		t.Fatal("expected entry 1 to survive, it was touched")
	}
	if _, ok := c.Get(3); !ok {
		t.Fatal("expected entry 3 to survive, just inserted")
	}
}
