package status

import (
	"fmt"
	"sync"
	"testing"
)

func TestMetricMapCachedPointer(t *testing.T) {
	reg := NewRegistry()

	a := reg.Ints.Get("job.enqueued")
	b := reg.Ints.Get("job.enqueued")
	if a != b {
		t.Error("Get must return the same pointer for the same key")
	}

	a.Add(3)
	if b.Load() != 3 {
		t.Errorf("Expected 3 through cached pointer, got %d", b.Load())
	}
}

func TestMetricMapConcurrentGet(t *testing.T) {
	m := NewMetricMap[AtomicFloat]()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Get(fmt.Sprintf("key.%d", j%8)).Add(1)
			}
		}(i)
	}
	wg.Wait()

	if m.Count() != 8 {
		t.Errorf("Expected 8 keys, got %d", m.Count())
	}
	total := 0.0
	m.Range(func(key string, ptr *AtomicFloat) {
		total += ptr.Get()
	})
	if total != 1600 {
		t.Errorf("Expected 1600 total increments, got %v", total)
	}
}

func TestIntSnapshotSorted(t *testing.T) {
	reg := NewRegistry()
	reg.Ints.Get("b.second").Store(2)
	reg.Ints.Get("a.first").Store(1)

	snap := reg.IntSnapshot()
	if len(snap) != 2 {
		t.Fatalf("Expected 2 metrics, got %d", len(snap))
	}
	if snap[0].Key != "a.first" || snap[1].Key != "b.second" {
		t.Errorf("Snapshot not sorted: %+v", snap)
	}
}

func TestAtomicStringTruncation(t *testing.T) {
	var s AtomicString
	long := "0123456789012345678901234567890"
	s.Store(long)
	if got := s.Load(); len(got) != MaxStringLen {
		t.Errorf("Expected truncation to %d, got %d", MaxStringLen, len(got))
	}
}
