package job

import (
	"sync/atomic"
)

// fence is a shared countdown for one dispatch
// Lifecycle: claimed by Dispatch, counts down as groups complete,
// released by the matching Wait. Fences live in a fixed reusable pool;
// claiming is the only cross-thread contention point and it is a CAS scan
type fence struct {
	remaining atomic.Int32
	inUse     atomic.Bool
}

// done marks one job of the dispatch complete
func (f *fence) done() {
	f.remaining.Add(-1)
}

// signaled reports whether every job of the dispatch has completed
func (f *fence) signaled() bool {
	return f.remaining.Load() <= 0
}

// release returns the fence to the pool
func (f *fence) release() {
	f.inUse.Store(false)
}

// fencePool is the fixed set of reusable fences
type fencePool struct {
	fences []fence
}

func newFencePool(size int) *fencePool {
	return &fencePool{fences: make([]fence, size)}
}

// claim reserves a free fence initialized to count, nil when none is free
func (p *fencePool) claim(count int32) *fence {
	for i := range p.fences {
		f := &p.fences[i]
		if f.inUse.CompareAndSwap(false, true) {
			f.remaining.Store(count)
			return f
		}
	}
	return nil
}

// Handle identifies one outstanding dispatch
// The zero Handle is the null handle; Wait on it is a no-op
type Handle struct {
	f *fence
}

// IsNil reports whether the handle refers to no dispatch
func (h Handle) IsNil() bool {
	return h.f == nil
}
