package cache

import (
	"fmt"
	"testing"

	"presenced/internal/session"
)

func rec(id string) session.MetadataRecord {
	return session.MetadataRecord{
		Identity:    session.TrackIdentity(id),
		DisplayName: id,
	}
}

func TestGetMiss(t *testing.T) {
	c := New(4)
	if _, ok := c.Get("missing"); ok {
		t.Error("Expected miss on empty cache")
	}
}

func TestPutGet(t *testing.T) {
	c := New(4)
	c.Put("a", rec("a"))

	got, ok := c.Get("a")
	if !ok {
		t.Fatal("Expected hit after Put")
	}
	if got.DisplayName != "a" {
		t.Errorf("Expected record a, got %q", got.DisplayName)
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	c.Put("a", rec("a"))
	c.Put("b", rec("b"))
	c.Put("c", rec("c")) // evicts a

	if _, ok := c.Get("a"); ok {
		t.Error("Expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("Expected b to survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("Expected c to survive")
	}
	if c.Len() != 2 {
		t.Errorf("Expected len 2, got %d", c.Len())
	}
}

func TestGetCountsAsTouch(t *testing.T) {
	c := New(2)
	c.Put("a", rec("a"))
	c.Put("b", rec("b"))
	c.Get("a")           // a is now most recent
	c.Put("c", rec("c")) // evicts b, not a

	if _, ok := c.Get("a"); !ok {
		t.Error("Expected a to survive after Get touch")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("Expected b to be evicted")
	}
}

func TestPutReplacesAndTouches(t *testing.T) {
	c := New(2)
	c.Put("a", rec("a"))
	c.Put("b", rec("b"))

	fresh := rec("a")
	fresh.Genre = "Piano"
	c.Put("a", fresh) // replace, a most recent
	c.Put("c", rec("c"))

	got, ok := c.Get("a")
	if !ok {
		t.Fatal("Expected a to survive after replace touch")
	}
	if got.Genre != "Piano" {
		t.Errorf("Expected replaced record, got genre %q", got.Genre)
	}
	if c.Len() != 2 {
		t.Errorf("Expected len 2 after replace, got %d", c.Len())
	}
}

func TestRetainsExactlyNMostRecent(t *testing.T) {
	const n = 5
	c := New(n)
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("track-%d", i)
		c.Put(session.TrackIdentity(id), rec(id))
	}

	if c.Len() != n {
		t.Fatalf("Expected len %d, got %d", n, c.Len())
	}
	// The last n puts must all be present.
	for i := 15; i < 20; i++ {
		id := session.TrackIdentity(fmt.Sprintf("track-%d", i))
		if _, ok := c.Get(id); !ok {
			t.Errorf("Expected %s to be retained", id)
		}
	}
}

func TestCapacityClamped(t *testing.T) {
	c := New(0)
	c.Put("a", rec("a"))
	c.Put("b", rec("b"))
	if c.Len() != 1 {
		t.Errorf("Expected len 1 with clamped capacity, got %d", c.Len())
	}
}
