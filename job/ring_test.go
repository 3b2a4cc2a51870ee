package job

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestRingCapacityRounding(t *testing.T) {
	r := newRing(100)
	if len(r.buffer) != 128 {
		t.Errorf("Expected capacity rounded to 128, got %d", len(r.buffer))
	}
}

func TestRingFIFO(t *testing.T) {
	r := newRing(8)
	for i := 0; i < 8; i++ {
		if !r.push(task{group: i}) {
			t.Fatalf("Push %d into empty ring failed", i)
		}
	}
	if r.push(task{group: 99}) {
		t.Error("Push into full ring must fail")
	}
	for i := 0; i < 8; i++ {
		got, ok := r.pop()
		if !ok || got.group != i {
			t.Fatalf("Pop %d: got %v/%v", i, got.group, ok)
		}
	}
	if _, ok := r.pop(); ok {
		t.Error("Pop from empty ring must fail")
	}
}

func TestRingWrapAround(t *testing.T) {
	r := newRing(4)
	for round := 0; round < 10; round++ {
		for i := 0; i < 4; i++ {
			if !r.push(task{group: round*4 + i}) {
				t.Fatalf("Push failed at round %d", round)
			}
		}
		for i := 0; i < 4; i++ {
			got, ok := r.pop()
			if !ok || got.group != round*4+i {
				t.Fatalf("Wrap-around order broken at round %d", round)
			}
		}
	}
}

// Concurrent producers and consumers must deliver each payload exactly once
func TestRingConcurrent(t *testing.T) {
	const producers = 4
	const perProducer = 1000

	r := newRing(64)
	var delivered [producers * perProducer]atomic.Int32
	var consumed atomic.Int64

	var wg sync.WaitGroup
	for c := 0; c < 4; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for consumed.Load() < producers*perProducer {
				if tk, ok := r.pop(); ok {
					delivered[tk.group].Add(1)
					consumed.Add(1)
				}
			}
		}()
	}
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				id := p*perProducer + i
				for !r.push(task{group: id}) {
				}
			}
		}(p)
	}
	wg.Wait()

	for i := range delivered {
		if n := delivered[i].Load(); n != 1 {
			t.Fatalf("Payload %d delivered %d times", i, n)
		}
	}
}

func TestScopeRegistry(t *testing.T) {
	r := NewScopeRegistry()
	a := r.Register("sim.motion")
	b := r.Register("sim.motion")
	if a != b {
		t.Error("Register must be stable per name")
	}
	if a == 0 {
		t.Error("Fresh scope must not collapse into unscoped")
	}
	if r.Name(a) != "sim.motion" {
		t.Errorf("Name mismatch: %s", r.Name(a))
	}
	if r.Name(9999) != "unscoped" {
		t.Error("Unknown ID must map to unscoped")
	}
}

func TestScopeRegistryOverflow(t *testing.T) {
	r := NewScopeRegistry()
	for i := 0; i < MaxScopes; i++ {
		r.Register(string(rune('a'+i%26)) + string(rune('0'+i%10)) + string(rune(i)))
	}
	if got := r.Register("one.too.many"); got != 0 {
		t.Errorf("Overflowing registration must collapse to unscoped, got %d", got)
	}
}
