package scheduler

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/simkit/engine"
	"github.com/lixenwraith/simkit/job"
	"github.com/lixenwraith/simkit/status"
)

// Phase is an ordered bucket of systems, the coarse execution order of
// one simulation tick
type Phase int

const (
	PhaseInput Phase = iota
	PhaseSimulation
	PhaseRenderPrep
	PhaseRender

	phaseCount
)

// String returns the phase name for logs and stats
func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhaseSimulation:
		return "simulation"
	case PhaseRenderPrep:
		return "renderprep"
	case PhaseRender:
		return "render"
	}
	return "unknown"
}

// SystemFn is one named unit of simulation work
// user is the opaque pointer given at registration
type SystemFn func(w *engine.World, dt time.Duration, user any)

// Per-tick lifecycle: pending -> ready -> running -> completed
// Tracked with the completed flag plus membership in the ready set
type system struct {
	name     string
	phase    Phase
	fn       SystemFn
	user     any
	depNames []string
	deps     []int
	scope    job.ScopeID

	completed bool
	elapsed   time.Duration
}

// Scheduler registers named systems tagged with a phase and optional
// same-tick dependencies, and runs independent systems of one phase in
// parallel through the job engine
type Scheduler struct {
	eng     *job.Engine
	systems []*system
	byName  map[string]int
	byPhase [phaseCount][]int

	finalized   bool
	warnedStuck [phaseCount]bool
	tickCount   uint64

	stats statsBuffer

	statTicks    *atomic.Int64
	statFallback *atomic.Int64
}

// New creates a scheduler running on the given job engine
func New(eng *job.Engine, reg *status.Registry) *Scheduler {
	return &Scheduler{
		eng:          eng,
		byName:       make(map[string]int, 32),
		statTicks:    reg.Ints.Get("scheduler.ticks"),
		statFallback: reg.Ints.Get("scheduler.sequential_fallbacks"),
	}
}

// AddSystem records a system and its named dependencies
// Dependency names are resolved at Finalize. Registrations after
// Finalize are rejected with a log line, never a failure
func (s *Scheduler) AddSystem(name string, phase Phase, fn SystemFn, user any, deps ...string) {
	if s.finalized {
		log.Printf("scheduler: system %q registered after finalize, ignoring", name)
		return
	}
	if _, dup := s.byName[name]; dup {
		log.Printf("scheduler: duplicate system %q, ignoring", name)
		return
	}
	if phase < 0 || phase >= phaseCount {
		log.Printf("scheduler: system %q has invalid phase %d, ignoring", name, phase)
		return
	}
	s.byName[name] = len(s.systems)
	s.systems = append(s.systems, &system{
		name:     name,
		phase:    phase,
		fn:       fn,
		user:     user,
		depNames: deps,
		scope:    s.eng.Scopes().Register("system." + name),
	})
}

// Finalize resolves dependency names to indices and buckets systems by
// phase. Names that do not resolve are logged and dropped, degrading to
// "no ordering constraint" instead of a hard failure
func (s *Scheduler) Finalize() {
	if s.finalized {
		return
	}
	s.finalized = true

	for i, sys := range s.systems {
		sys.deps = sys.deps[:0]
		for _, dep := range sys.depNames {
			j, ok := s.byName[dep]
			if !ok {
				log.Printf("scheduler: dependency %q of system %q not found, dropping constraint", dep, sys.name)
				continue
			}
			sys.deps = append(sys.deps, j)
		}
		s.byPhase[sys.phase] = append(s.byPhase[sys.phase], i)
	}
}

// Tick runs every system exactly once, phases in declared order,
// independent systems of one phase in parallel
func (s *Scheduler) Tick(w *engine.World, dt time.Duration) {
	if !s.finalized {
		s.Finalize()
	}

	for _, sys := range s.systems {
		sys.completed = false
		sys.elapsed = 0
	}

	for phase := Phase(0); phase < phaseCount; phase++ {
		s.runPhase(phase, w, dt)
	}

	s.tickCount++
	s.statTicks.Store(int64(s.tickCount))
	s.publishStats()
}

// runPhase loops the ready-set computation until the phase drains
func (s *Scheduler) runPhase(phase Phase, w *engine.World, dt time.Duration) {
	idxs := s.byPhase[phase]
	remaining := len(idxs)
	ready := make([]int, 0, len(idxs))

	for remaining > 0 {
		ready = ready[:0]
		for _, i := range idxs {
			sys := s.systems[i]
			if sys.completed {
				continue
			}
			if s.depsCompleted(sys) {
				ready = append(ready, i)
			}
		}

		if len(ready) == 0 {
			// Unsatisfiable subgraph: a cycle, or an ordering edge into a
			// later phase. Run the stragglers in registration order so the
			// tick always makes forward progress
			s.statFallback.Add(1)
			if !s.warnedStuck[phase] {
				s.warnedStuck[phase] = true
				log.Printf("scheduler: unsatisfiable dependencies in phase %s, running %d systems sequentially", phase, remaining)
			}
			for _, i := range idxs {
				if !s.systems[i].completed {
					s.runInline(s.systems[i], w, dt)
					remaining--
				}
			}
			return
		}

		if len(ready) == 1 {
			// Single ready system: skip dispatch overhead
			s.runInline(s.systems[ready[0]], w, dt)
			remaining--
			continue
		}

		// One job group per ready system; the fence both preserves the
		// dependency frontier and parallelizes within it
		batch := make([]int, len(ready))
		copy(batch, ready)
		h := s.eng.Dispatch(len(batch), 1, func(start, end, group, worker int) {
			for g := start; g < end; g++ {
				s.runTimed(s.systems[batch[g]], w, dt)
			}
		})
		s.eng.Wait(h)

		for _, i := range batch {
			s.systems[i].completed = true
			remaining--
		}
	}
}

func (s *Scheduler) depsCompleted(sys *system) bool {
	for _, d := range sys.deps {
		if !s.systems[d].completed {
			return false
		}
	}
	return true
}

// runTimed executes one system body under its scoped timer
// Does not set completed: dispatched batches complete as a unit after the
// fence, so a same-batch system never observes a half-finished frontier
func (s *Scheduler) runTimed(sys *system, w *engine.World, dt time.Duration) {
	started := time.Now()
	sys.fn(w, dt, sys.user)
	sys.elapsed = time.Since(started)
}

func (s *Scheduler) runInline(sys *system, w *engine.World, dt time.Duration) {
	s.runTimed(sys, w, dt)
	sys.completed = true
}
