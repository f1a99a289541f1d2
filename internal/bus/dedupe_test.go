package bus

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDedupeCache_AdmitOnce(t *testing.T) {
	c := NewDedupeCache(0, 0)

	if !c.Admit("E1") {
		t.Fatal("first Admit(E1) = false, want true")
	}
	for i := 0; i < 5; i++ {
		if c.Admit("E1") {
			t.Fatalf("repeat Admit(E1) #%d = true, want false", i+1)
		}
	}
	if !c.Admit("E2") {
		t.Error("Admit(E2) = false, want true")
	}
	if got := c.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestDedupeCache_EmptyID(t *testing.T) {
	c := NewDedupeCache(0, 0)
	if c.Admit("") {
		t.Error("Admit(\"\") = true, want false")
	}
	if c.Len() != 0 {
		t.Errorf("empty id should not be stored, Len() = %d", c.Len())
	}
}

func TestDedupeCache_IsDuplicate(t *testing.T) {
	c := NewDedupeCache(0, 0)
	if c.IsDuplicate("x") {
		t.Error("first IsDuplicate(x) = true, want false")
	}
	if !c.IsDuplicate("x") {
		t.Error("second IsDuplicate(x) = false, want true")
	}
}

func TestDedupeCache_EvictsOldestAtCapacity(t *testing.T) {
	c := NewDedupeCache(0, 3)
	for _, id := range []string{"a", "b", "c", "d"} {
		if !c.Admit(id) {
			t.Fatalf("Admit(%s) = false, want true", id)
		}
	}
	if got := c.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
	// "a" was evicted to make room for "d".
	if !c.Admit("a") {
		t.Error("Admit(a) after eviction = false, want true")
	}
	if c.Admit("d") {
		t.Error("Admit(d) = true, want false (still resident)")
	}
}

func TestDedupeCache_TTL(t *testing.T) {
	c := NewDedupeCache(time.Minute, 10)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Admit("E1")
	now = now.Add(30 * time.Second)
	if c.Admit("E1") {
		t.Error("Admit(E1) within ttl = true, want false")
	}

	now = now.Add(31 * time.Second)
	if !c.Admit("E1") {
		t.Error("Admit(E1) after ttl = false, want true")
	}
}

func TestDedupeCache_Concurrent(t *testing.T) {
	c := NewDedupeCache(0, 0)
	var admitted atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Admit("same") {
				admitted.Add(1)
			}
			c.Admit(fmt.Sprintf("id-%d", i))
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != 1 {
		t.Errorf("concurrent Admit(same) admitted %d times, want 1", got)
	}
}
