package scheduler

import (
	"sync/atomic"
	"time"
)

// SystemStats is one system's timing for the most recent tick
type SystemStats struct {
	Name    string
	Phase   Phase
	Elapsed time.Duration
}

// StatsSnapshot is a self-consistent view of one tick
type StatsSnapshot struct {
	Tick    uint64
	Systems []SystemStats
}

// statsBuffer double-buffers snapshots: the writer fills the inactive
// buffer and swaps the pointer atomically, so a read-only consumer never
// observes a half-written tick and never locks against the writer.
// A snapshot stays untouched for one full tick after it is replaced;
// consumers read it within the frame they obtained it
type statsBuffer struct {
	bufs    [2]StatsSnapshot
	active  atomic.Pointer[StatsSnapshot]
	writeIx int
}

// publishStats fills the inactive buffer and swaps it in
func (s *Scheduler) publishStats() {
	buf := &s.stats.bufs[s.stats.writeIx]
	s.stats.writeIx ^= 1

	if cap(buf.Systems) < len(s.systems) {
		buf.Systems = make([]SystemStats, 0, len(s.systems))
	}
	buf.Systems = buf.Systems[:0]
	buf.Tick = s.tickCount
	for _, sys := range s.systems {
		buf.Systems = append(buf.Systems, SystemStats{
			Name:    sys.name,
			Phase:   sys.phase,
			Elapsed: sys.elapsed,
		})
	}
	s.stats.active.Store(buf)
}

// StatsSnapshot returns the latest published tick timings
func (s *Scheduler) StatsSnapshot() StatsSnapshot {
	if p := s.stats.active.Load(); p != nil {
		return *p
	}
	return StatsSnapshot{}
}
