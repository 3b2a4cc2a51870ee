package job

import (
	"sort"
	"sync/atomic"
	"time"
)

// TopScopeCount bounds the most-expensive-scopes list in a snapshot
const TopScopeCount = 8

// frameCounters aggregates per-frame telemetry
// Workers write with atomics; BeginFrame resets on the owner thread
type frameCounters struct {
	enqueued   atomic.Int64
	completed  atomic.Int64
	busyNanos  atomic.Int64
	scopeNanos [MaxScopes]atomic.Int64
	scopeCalls [MaxScopes]atomic.Int64
}

func (c *frameCounters) reset() {
	c.enqueued.Store(0)
	c.completed.Store(0)
	c.busyNanos.Store(0)
	for i := range c.scopeNanos {
		c.scopeNanos[i].Store(0)
		c.scopeCalls[i].Store(0)
	}
}

// ScopeSample is one named scope's accumulated cost this frame
type ScopeSample struct {
	Name    string
	Elapsed time.Duration
	Calls   int64
}

// TelemetrySnapshot is one frame's published job engine telemetry
type TelemetrySnapshot struct {
	Enqueued  int64
	Completed int64
	Busy      time.Duration
	TopScopes []ScopeSample
}

// BeginFrame resets the per-frame counters
// Call once at the top of the simulation frame, after PublishFrameTelemetry
func (e *Engine) BeginFrame() {
	e.counters.reset()
}

// PublishFrameTelemetry snapshots the frame counters and the bounded
// top-N most expensive scopes, and folds totals into the status registry
func (e *Engine) PublishFrameTelemetry() {
	snap := &TelemetrySnapshot{
		Enqueued:  e.counters.enqueued.Load(),
		Completed: e.counters.completed.Load(),
		Busy:      time.Duration(e.counters.busyNanos.Load()),
	}

	samples := make([]ScopeSample, 0, TopScopeCount)
	for id := 0; id < e.scopes.Count(); id++ {
		nanos := e.counters.scopeNanos[id].Load()
		if nanos == 0 {
			continue
		}
		samples = append(samples, ScopeSample{
			Name:    e.scopes.Name(ScopeID(id)),
			Elapsed: time.Duration(nanos),
			Calls:   e.counters.scopeCalls[id].Load(),
		})
	}
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Elapsed > samples[j].Elapsed
	})
	if len(samples) > TopScopeCount {
		samples = samples[:TopScopeCount]
	}
	snap.TopScopes = samples

	e.snapshot.Store(snap)

	e.statEnqueued.Add(snap.Enqueued)
	e.statCompleted.Add(snap.Completed)
	e.statBusyMicros.Add(snap.Busy.Microseconds())
}

// TelemetrySnapshot returns the most recently published snapshot
// Safe to call from any thread; the snapshot is immutable once published
func (e *Engine) TelemetrySnapshot() TelemetrySnapshot {
	if s := e.snapshot.Load(); s != nil {
		return *s
	}
	return TelemetrySnapshot{}
}
