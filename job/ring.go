package job

import (
	"sync/atomic"
)

// task is one unit of queued work
// Either fn (ranged group work) or async (fire-and-forget closure) is set
type task struct {
	fn    RangeFn
	async func()

	start, end int
	group      int

	fence *fence
	scope ScopeID
}

// RangeFn processes one group's subrange [start,end)
// group is the group's ordinal within its dispatch, worker identifies the
// executing thread (the owner thread uses the index one past the pool)
type RangeFn func(start, end, group, worker int)

// slot carries a task and its sequence number for the lock-free protocol
type slot struct {
	sequence atomic.Uint64
	t        task
}

// ring is a bounded multi-producer/multi-consumer queue
// Per-slot sequence numbers arbitrate ownership: producers and consumers
// CAS the position counters and never block each other. Payload ownership
// transfers at each successful pop
type ring struct {
	buffer []slot
	mask   uint64

	enqueuePos atomic.Uint64
	_          [56]byte // Keep the two positions on separate cache lines
	dequeuePos atomic.Uint64
}

// newRing creates a queue with capacity rounded up to a power of two
func newRing(capacity int) *ring {
	cap := uint64(1)
	for cap < uint64(capacity) {
		cap <<= 1
	}
	r := &ring{
		buffer: make([]slot, cap),
		mask:   cap - 1,
	}
	for i := range r.buffer {
		r.buffer[i].sequence.Store(uint64(i))
	}
	return r
}

// push enqueues a task, returning false when the ring is full
func (r *ring) push(t task) bool {
	pos := r.enqueuePos.Load()
	for {
		s := &r.buffer[pos&r.mask]
		seq := s.sequence.Load()
		diff := int64(seq) - int64(pos)

		switch {
		case diff == 0:
			if r.enqueuePos.CompareAndSwap(pos, pos+1) {
				s.t = t
				s.sequence.Store(pos + 1)
				return true
			}
			pos = r.enqueuePos.Load()
		case diff < 0:
			// Consumer has not finished with this slot: full
			return false
		default:
			pos = r.enqueuePos.Load()
		}
	}
}

// pop dequeues a task, returning false when the ring is empty
func (r *ring) pop() (task, bool) {
	pos := r.dequeuePos.Load()
	for {
		s := &r.buffer[pos&r.mask]
		seq := s.sequence.Load()
		diff := int64(seq) - int64(pos+1)

		switch {
		case diff == 0:
			if r.dequeuePos.CompareAndSwap(pos, pos+1) {
				t := s.t
				s.t = task{} // Drop references for GC
				s.sequence.Store(pos + r.mask + 1)
				return t, true
			}
			pos = r.dequeuePos.Load()
		case diff < 0:
			// Producer has not published this slot: empty
			return task{}, false
		default:
			pos = r.dequeuePos.Load()
		}
	}
}
