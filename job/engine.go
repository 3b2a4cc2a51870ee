package job

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/simkit/core"
	"github.com/lixenwraith/simkit/status"
)

// waitPollInterval is the timed-sleep fallback while blocked in Wait
const waitPollInterval = 50 * time.Microsecond

// Engine is a fixed pool of worker threads, one bounded lock-free queue
// per worker, with work stealing between them
//
// Backpressure policy: work is never dropped. A full target queue falls
// back to a scan of all queues; when every queue is full the job runs
// synchronously on the calling thread, trading a latency spike for
// guaranteed completion
type Engine struct {
	queues      []*ring
	workerCount int
	rr          atomic.Uint32

	fences *fencePool
	scopes *ScopeRegistry

	counters frameCounters
	snapshot atomic.Pointer[TelemetrySnapshot]

	// Worker sleep state; producers signal under the same mutex so a
	// worker cannot recheck-then-sleep past a concurrent enqueue
	sleepMu   sync.Mutex
	sleepCond *sync.Cond
	sleepers  int

	// Waiter wakeup for Wait's timed fallback
	wake chan struct{}

	stopped  atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Cached status registry pointers, written at publish time
	statEnqueued   *atomic.Int64
	statCompleted  *atomic.Int64
	statBusyMicros *atomic.Int64
	statInline     *atomic.Int64
}

// NewEngine creates and starts a worker pool
// workers may be zero, in which case every dispatch degrades to inline
// execution on the calling thread
func NewEngine(workers, queueCapacity, fenceCount int, scopes *ScopeRegistry, reg *status.Registry) *Engine {
	if queueCapacity <= 0 {
		queueCapacity = 256
	}
	if fenceCount <= 0 {
		fenceCount = 64
	}
	if scopes == nil {
		scopes = NewScopeRegistry()
	}

	e := &Engine{
		queues:         make([]*ring, workers),
		workerCount:    workers,
		fences:         newFencePool(fenceCount),
		scopes:         scopes,
		wake:           make(chan struct{}, 1),
		statEnqueued:   reg.Ints.Get("job.enqueued"),
		statCompleted:  reg.Ints.Get("job.completed"),
		statBusyMicros: reg.Ints.Get("job.busy_us"),
		statInline:     reg.Ints.Get("job.inline_fallbacks"),
	}
	e.sleepCond = sync.NewCond(&e.sleepMu)

	for i := 0; i < workers; i++ {
		e.queues[i] = newRing(queueCapacity)
	}
	for i := 0; i < workers; i++ {
		idx := i
		e.wg.Add(1)
		core.Go(func() { e.workerLoop(idx) })
	}
	return e
}

// Scopes returns the shared scope registry
func (e *Engine) Scopes() *ScopeRegistry {
	return e.scopes
}

// WorkerCount returns the number of pooled workers
func (e *Engine) WorkerCount() int {
	return e.workerCount
}

// Dispatch splits [0,count) into ceil(count/groupSize) groups and enqueues
// one job per group under a freshly claimed fence
//
// Returns the null handle when count or groupSize is zero. When no fence
// is free or the pool has no workers the groups run inline on the calling
// thread before return, and the null handle is returned
func (e *Engine) Dispatch(count, groupSize int, fn RangeFn) Handle {
	return e.DispatchScoped(count, groupSize, 0, fn)
}

// DispatchScoped is Dispatch with an explicit telemetry scope
func (e *Engine) DispatchScoped(count, groupSize int, scope ScopeID, fn RangeFn) Handle {
	if count <= 0 || groupSize <= 0 || fn == nil {
		return Handle{}
	}
	groups := (count + groupSize - 1) / groupSize

	if e.workerCount == 0 {
		e.runGroupsInline(count, groupSize, groups, scope, fn)
		return Handle{}
	}

	f := e.fences.claim(int32(groups))
	if f == nil {
		// Fence pool exhausted: degrade rather than fail
		e.runGroupsInline(count, groupSize, groups, scope, fn)
		return Handle{}
	}

	for g := 0; g < groups; g++ {
		start := g * groupSize
		end := start + groupSize
		if end > count {
			end = count
		}
		e.enqueue(task{fn: fn, start: start, end: end, group: g, fence: f, scope: scope})
	}
	return Handle{f: f}
}

// Wait blocks until every job of the dispatch has completed, then
// releases the fence. While blocked the calling thread executes stolen
// jobs as an extra worker instead of idling. No-op on the null handle
func (e *Engine) Wait(h Handle) {
	if h.f == nil {
		return
	}
	for !h.f.signaled() {
		if t, ok := e.stealAny(); ok {
			e.run(t, e.workerCount)
			continue
		}
		select {
		case <-e.wake:
		case <-time.After(waitPollInterval):
		}
	}
	h.f.release()
}

// DispatchAsync enqueues a fire-and-forget closure
// The closure is an owned task object; no fence is claimed and nothing
// observes its completion except frame telemetry
func (e *Engine) DispatchAsync(fn func(), scope ScopeID) {
	if fn == nil {
		return
	}
	e.enqueue(task{async: fn, scope: scope})
}

// Stop halts the worker pool. Jobs already executing finish; jobs still
// queued are abandoned. Idempotent
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.stopped.Store(true)
		e.sleepMu.Lock()
		e.sleepCond.Broadcast()
		e.sleepMu.Unlock()
		e.wg.Wait()
	})
}

// enqueue routes a task to a worker queue round-robin, falling through
// the backpressure ladder on full queues
func (e *Engine) enqueue(t task) {
	e.counters.enqueued.Add(1)

	if e.workerCount == 0 {
		e.statInline.Add(1)
		e.run(t, 0)
		return
	}

	target := int(e.rr.Add(1)-1) % e.workerCount
	if !e.queues[target].push(t) {
		pushed := false
		for i := 0; i < e.workerCount; i++ {
			if e.queues[i].push(t) {
				pushed = true
				break
			}
		}
		if !pushed {
			// Every queue full: execute on the calling thread
			e.statInline.Add(1)
			e.run(t, e.workerCount)
			return
		}
	}
	e.wakeWorker()
}

// run executes one task on behalf of worker index and records telemetry
func (e *Engine) run(t task, worker int) {
	started := time.Now()
	if t.async != nil {
		t.async()
	} else if t.fn != nil {
		t.fn(t.start, t.end, t.group, worker)
	}
	elapsed := time.Since(started).Nanoseconds()

	e.counters.completed.Add(1)
	e.counters.busyNanos.Add(elapsed)
	e.counters.scopeNanos[t.scope].Add(elapsed)
	e.counters.scopeCalls[t.scope].Add(1)

	if t.fence != nil {
		t.fence.done()
		if t.fence.signaled() {
			e.wakeWaiter()
		}
	}
}

// runGroupsInline executes a whole dispatch synchronously
func (e *Engine) runGroupsInline(count, groupSize, groups int, scope ScopeID, fn RangeFn) {
	e.statInline.Add(1)
	for g := 0; g < groups; g++ {
		start := g * groupSize
		end := start + groupSize
		if end > count {
			end = count
		}
		e.counters.enqueued.Add(1)
		e.run(task{fn: fn, start: start, end: end, group: g, scope: scope}, e.workerCount)
	}
}

// workerLoop is one pooled worker: own queue first, then steal from every
// other queue, then sleep until an enqueue or shutdown wakes it
func (e *Engine) workerLoop(idx int) {
	defer e.wg.Done()

	for {
		if e.stopped.Load() {
			return
		}

		if t, ok := e.queues[idx].pop(); ok {
			e.run(t, idx)
			continue
		}
		if t, ok := e.stealFrom(idx); ok {
			e.run(t, idx)
			continue
		}

		e.sleepMu.Lock()
		if e.stopped.Load() {
			e.sleepMu.Unlock()
			return
		}
		if e.anyQueued() {
			e.sleepMu.Unlock()
			continue
		}
		e.sleepers++
		e.sleepCond.Wait()
		e.sleepers--
		e.sleepMu.Unlock()
	}
}

// stealFrom attempts to take one task from any queue other than own
func (e *Engine) stealFrom(own int) (task, bool) {
	for i := 1; i < e.workerCount; i++ {
		victim := (own + i) % e.workerCount
		if t, ok := e.queues[victim].pop(); ok {
			return t, true
		}
	}
	return task{}, false
}

// stealAny attempts to take one task from any queue, for waiting threads
func (e *Engine) stealAny() (task, bool) {
	for i := 0; i < e.workerCount; i++ {
		if t, ok := e.queues[i].pop(); ok {
			return t, true
		}
	}
	return task{}, false
}

// anyQueued reports whether any queue appears non-empty
// Approximate outside the slot protocol; only used as a sleep gate under
// sleepMu, where producers signal after publishing
func (e *Engine) anyQueued() bool {
	for _, q := range e.queues {
		if q.enqueuePos.Load() != q.dequeuePos.Load() {
			return true
		}
	}
	return false
}

// wakeWorker signals one sleeping worker after an enqueue
func (e *Engine) wakeWorker() {
	e.sleepMu.Lock()
	if e.sleepers > 0 {
		e.sleepCond.Signal()
	}
	e.sleepMu.Unlock()
}

// wakeWaiter nudges a thread blocked in Wait
func (e *Engine) wakeWaiter() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}
