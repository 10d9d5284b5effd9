package coordinator

import (
	"sync"
	"testing"

	"github.com/NotCoffee418/kamstrup_meter/pkg/kmp"
)

func TestRegistry_Idempotent(t *testing.T) {
	r := NewCommandRegistry()

	if !r.Add(60) {
		t.Fatalf("first add should report new")
	}
	if r.Add(60) {
		t.Fatalf("second add should be a no-op")
	}
	if r.Len() != 1 {
		t.Fatalf("len=%d want 1", r.Len())
	}

	if r.Remove(68) {
		t.Fatalf("removing an unknown id should be a no-op")
	}
	if !r.Remove(60) || r.Contains(60) || r.Len() != 0 {
		t.Fatalf("remove failed")
	}
}

func TestRegistry_IDsIsACopy(t *testing.T) {
	r := NewCommandRegistry(60, 68, 80)
	ids := r.IDs()
	r.Remove(68)
	r.Add(99)

	want := []kmp.RegisterID{60, 68, 80}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("copy changed: %v", ids)
		}
	}
	got := r.IDs()
	if len(got) != 3 || got[0] != 60 || got[1] != 80 || got[2] != 99 {
		t.Fatalf("registry order=%v", got)
	}
}

func TestRegistry_ConcurrentMutation(t *testing.T) {
	r := NewCommandRegistry()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := kmp.RegisterID(i % 20)
				if (i+g)%3 == 0 {
					r.Remove(id)
				} else {
					r.Add(id)
				}
				_ = r.IDs()
			}
		}(g)
	}
	wg.Wait()

	seen := map[kmp.RegisterID]bool{}
	for _, id := range r.IDs() {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
}
