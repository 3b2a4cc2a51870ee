package streaming

import (
	"sort"
	"sync/atomic"

	"github.com/lixenwraith/simkit/core"
	"github.com/lixenwraith/simkit/engine"
	"github.com/lixenwraith/simkit/job"
	"github.com/lixenwraith/simkit/status"
	"github.com/lixenwraith/simkit/vmath"
)

// completedQueueCap bounds the completed-loads FIFO; loader jobs block on
// a full queue rather than dropping results
const completedQueueCap = 1024

// loadResult is one finished background load
type loadResult struct {
	coord     core.SectorCoord
	requestID uint32
	records   []SpawnRecord
	err       error
}

// Engine streams sector content in and out of the world without stalling
// the simulation loop. All methods run on the owner thread; only loader
// bodies execute on the job pool, and the completed queue is the single
// cross-thread seam
type Engine struct {
	jobs   *job.Engine
	loader Loader

	sectorSize float64
	sectors    map[core.SectorCoord]*sector
	pinned     map[core.SectorCoord]bool

	// Queued sectors in ascending priority order, rebuilt each frame
	pendingLoads []core.SectorCoord

	completed chan loadResult
	inFlight  int

	// Sectors with entities draining through the despawn queue
	despawnQueue []despawnEntry

	camSector core.SectorCoord
	frame     FrameStats

	loadScope job.ScopeID

	statLoads    *atomic.Int64
	statStale    *atomic.Int64
	statSpawned  *atomic.Int64
	statDespawns *atomic.Int64
}

type despawnEntry struct {
	coord  core.SectorCoord
	entity core.Entity
}

// NewEngine creates a streaming engine over the given job pool and loader
// sectorSize is the world-unit edge length of one grid cell
func NewEngine(jobs *job.Engine, loader Loader, sectorSize float64, reg *status.Registry) *Engine {
	return &Engine{
		jobs:         jobs,
		loader:       loader,
		sectorSize:   sectorSize,
		sectors:      make(map[core.SectorCoord]*sector, 256),
		pinned:       make(map[core.SectorCoord]bool),
		completed:    make(chan loadResult, completedQueueCap),
		loadScope:    jobs.Scopes().Register("streaming.load"),
		statLoads:    reg.Ints.Get("streaming.loads_completed"),
		statStale:    reg.Ints.Get("streaming.stale_discarded"),
		statSpawned:  reg.Ints.Get("streaming.entities_spawned"),
		statDespawns: reg.Ints.Get("streaming.entities_despawned"),
	}
}

// Pin forces a coordinate into the desired set regardless of camera and
// budget until Unpin
func (e *Engine) Pin(coord core.SectorCoord) {
	e.pinned[coord] = true
	if sec, ok := e.sectors[coord]; ok {
		sec.pinned = true
	}
}

// Unpin releases a pinned coordinate; it unloads normally once outside
// the unload radius
func (e *Engine) Unpin(coord core.SectorCoord) {
	delete(e.pinned, coord)
	if sec, ok := e.sectors[coord]; ok {
		sec.pinned = false
	}
}

// SectorState returns the current state of a coordinate
// Unreferenced coordinates report SectorUnloaded
func (e *Engine) SectorState(coord core.SectorCoord) SectorState {
	if s, ok := e.sectors[coord]; ok {
		return s.state
	}
	return SectorUnloaded
}

// UpdateActiveSet recomputes the desired sector set for this frame and
// advances Unloaded->Queued and Active->Unloading transitions
//
// Priority is ascending squared grid distance, optionally reduced by the
// frustum-bias term so sectors ahead of the camera load first. The strict
// unloadRadius > loadRadius hysteresis gap stops boundary thrashing; a
// smaller unloadRadius is clamped up to loadRadius
func (e *Engine) UpdateActiveSet(cameraPos, cameraForward vmath.Vec3F, loadRadius, unloadRadius int, sectorBudget int, frustumBias float64, allowScheduling bool) {
	e.frame = FrameStats{}

	if unloadRadius < loadRadius {
		unloadRadius = loadRadius
	}
	e.camSector = core.SectorFromWorld(cameraPos.X, cameraPos.Z, e.sectorSize)

	desired := e.desiredSet(cameraPos, cameraForward, loadRadius, frustumBias)
	e.frame.DesiredSectors = len(desired)

	// Queue pass, best priority first
	if allowScheduling {
		budgetUsed := e.countBudgeted()
		for _, d := range desired {
			sec := e.getOrCreate(d.coord)
			sec.distSq = d.distSq
			sec.priority = d.priority
			if sec.state != SectorUnloaded {
				continue
			}
			if !sec.pinned && budgetUsed >= sectorBudget {
				e.frame.SectorBudgetRejections++
				continue
			}
			sec.requestID++
			sec.state = SectorQueued
			budgetUsed++
			e.frame.QueuedThisFrame++
		}
	}

	// Unload pass: anything outside the hysteresis ring goes away
	for _, sec := range e.sectors {
		if sec.pinned || e.withinRadius(sec.coord, unloadRadius) {
			continue
		}
		e.beginUnload(sec)
	}

	// Eviction pass: pinned sectors can push the set over budget, and the
	// budget itself may shrink between frames. Farthest active first
	e.evictOverBudget(sectorBudget)

	// Rebuild the dispatch order for DispatchPendingLoads
	e.pendingLoads = e.pendingLoads[:0]
	for _, d := range desired {
		if sec, ok := e.sectors[d.coord]; ok && sec.state == SectorQueued {
			e.pendingLoads = append(e.pendingLoads, d.coord)
		}
	}
}

// desiredEntry is one candidate coordinate with its frame priority
type desiredEntry struct {
	coord    core.SectorCoord
	distSq   int64
	priority float64
}

// desiredSet enumerates the square ring around the camera sector, unions
// the pinned coordinates, and sorts by ascending priority
func (e *Engine) desiredSet(cameraPos, cameraForward vmath.Vec3F, loadRadius int, frustumBias float64) []desiredEntry {
	out := make([]desiredEntry, 0, (2*loadRadius+1)*(2*loadRadius+1)+len(e.pinned))
	seen := make(map[core.SectorCoord]bool, cap(out))

	forward := vmath.V3FNormalize(vmath.Vec3F{X: cameraForward.X, Z: cameraForward.Z})

	add := func(coord core.SectorCoord) {
		if seen[coord] {
			return
		}
		seen[coord] = true

		distSq := coord.DistanceSq(e.camSector)
		priority := float64(distSq)
		if frustumBias != 0 && distSq > 0 {
			center := vmath.Vec3F{
				X: (float64(coord.X) + 0.5) * e.sectorSize,
				Z: (float64(coord.Z) + 0.5) * e.sectorSize,
			}
			dir := vmath.V3FNormalize(vmath.Vec3F{X: center.X - cameraPos.X, Z: center.Z - cameraPos.Z})
			priority -= frustumBias * vmath.V3FDot(forward, dir)
		}
		out = append(out, desiredEntry{coord: coord, distSq: distSq, priority: priority})
	}

	for dz := -loadRadius; dz <= loadRadius; dz++ {
		for dx := -loadRadius; dx <= loadRadius; dx++ {
			add(core.SectorCoord{X: e.camSector.X + int32(dx), Z: e.camSector.Z + int32(dz)})
		}
	}
	for coord := range e.pinned {
		add(coord)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority < out[j].priority
		}
		// Stable tiebreak so equal-priority ordering is deterministic
		if out[i].coord.X != out[j].coord.X {
			return out[i].coord.X < out[j].coord.X
		}
		return out[i].coord.Z < out[j].coord.Z
	})
	return out
}

// DispatchPendingLoads claims queued sectors up to maxConcurrent loads in
// flight and hands their generation to the job pool
func (e *Engine) DispatchPendingLoads(maxConcurrent int) {
	for len(e.pendingLoads) > 0 && e.inFlight < maxConcurrent {
		coord := e.pendingLoads[0]
		e.pendingLoads = e.pendingLoads[1:]

		sec, ok := e.sectors[coord]
		if !ok || sec.state != SectorQueued {
			continue
		}
		sec.state = SectorLoading

		// Captured id: the result is authoritative only while it matches
		reqID := sec.requestID
		e.inFlight++
		e.frame.LoadsDispatched++

		e.jobs.DispatchAsync(func() {
			records, err := e.loader.LoadSector(coord)
			e.completed <- loadResult{coord: coord, requestID: reqID, records: records, err: err}
		}, e.loadScope)
	}
}

// PumpCompletedLoads drains the completed-loads FIFO once, then activates
// ready sectors nearest-first under the activation and entity budgets
func (e *Engine) PumpCompletedLoads(w *engine.World, entityBudget, maxActivationsPerFrame int) {
	for {
		var res loadResult
		select {
		case res = <-e.completed:
		default:
			e.activateReady(w, entityBudget, maxActivationsPerFrame)
			return
		}

		e.inFlight--
		e.frame.LoadsCompleted++
		e.statLoads.Add(1)

		sec, ok := e.sectors[res.coord]
		if !ok || res.requestID != sec.requestID {
			// Superseded request: expected race, discard silently
			e.frame.StaleDiscarded++
			e.statStale.Add(1)
			continue
		}
		if sec.state != SectorLoading {
			e.frame.StaleDiscarded++
			e.statStale.Add(1)
			continue
		}
		if res.err != nil {
			// Loader failed: release the slot and retry on a later frame
			e.frame.LoadErrors++
			sec.clear()
			continue
		}
		sec.records = res.records
		sec.state = SectorReadyToActivate
	}
}

// activateReady promotes ReadyToActivate sectors to Active,
// nearest-to-camera first, bounded by both budgets
func (e *Engine) activateReady(w *engine.World, entityBudget, maxActivationsPerFrame int) {
	ready := make([]*sector, 0, 16)
	for _, sec := range e.sectors {
		if sec.state == SectorReadyToActivate {
			ready = append(ready, sec)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		di := ready[i].coord.DistanceSq(e.camSector)
		dj := ready[j].coord.DistanceSq(e.camSector)
		if di != dj {
			return di < dj
		}
		if ready[i].coord.X != ready[j].coord.X {
			return ready[i].coord.X < ready[j].coord.X
		}
		return ready[i].coord.Z < ready[j].coord.Z
	})

	activated := 0
	for _, sec := range ready {
		if activated >= maxActivationsPerFrame {
			e.frame.ActivationBudgetDeferrals += len(ready) - activated
			break
		}
		if w.AliveCount()+len(sec.records) > entityBudget {
			e.frame.EntityBudgetRejections++
			continue
		}
		e.activate(w, sec)
		activated++
		e.frame.Activations++
	}
}

// activate instantiates the sector payload as world entities
func (e *Engine) activate(w *engine.World, sec *sector) {
	for _, rec := range sec.records {
		ent := w.Create()
		if ent.IsNil() {
			break
		}
		engine.Add(w, ent, Placement{Position: rec.Position, Bounds: rec.Bounds})
		engine.Add(w, ent, RenderAsset{MeshID: rec.MeshID, MaterialID: rec.MaterialID})
		engine.Add(w, ent, SectorTag{Coord: sec.coord})
		sec.entities = append(sec.entities, ent)
		e.statSpawned.Add(1)
	}
	sec.records = nil
	sec.state = SectorActive
}

// PumpUnloadQueue destroys up to maxDespawnsPerFrame queued entities and
// finishes Unloading->Unloaded for sectors that drained
func (e *Engine) PumpUnloadQueue(w *engine.World, maxDespawnsPerFrame int) {
	n := len(e.despawnQueue)
	if n > maxDespawnsPerFrame {
		e.frame.DespawnBudgetDeferrals += n - maxDespawnsPerFrame
		n = maxDespawnsPerFrame
	}

	for i := 0; i < n; i++ {
		entry := e.despawnQueue[i]
		w.Destroy(entry.entity)
		e.frame.Despawns++
		e.statDespawns.Add(1)

		if sec, ok := e.sectors[entry.coord]; ok {
			sec.pendingDespawns--
			if sec.pendingDespawns <= 0 && sec.state == SectorUnloading {
				sec.clear()
			}
		}
	}
	e.despawnQueue = e.despawnQueue[n:]
	if len(e.despawnQueue) == 0 {
		e.despawnQueue = nil
	}
}

// beginUnload tears a sector down according to its current state
// Entities are drained through the budgeted despawn queue, never
// destroyed in bulk inside one frame
func (e *Engine) beginUnload(sec *sector) {
	switch sec.state {
	case SectorUnloaded, SectorUnloading:
		return
	case SectorQueued:
		// Not yet dispatched: nothing in flight to invalidate
		sec.requestID++
		sec.clear()
	case SectorLoading:
		// Result still arrives; the bumped id makes it stale
		sec.requestID++
		sec.clear()
	case SectorReadyToActivate:
		sec.requestID++
		sec.clear()
	case SectorActive:
		sec.requestID++
		if len(sec.entities) == 0 {
			sec.clear()
			return
		}
		sec.state = SectorUnloading
		sec.pendingDespawns = len(sec.entities)
		for _, ent := range sec.entities {
			e.despawnQueue = append(e.despawnQueue, despawnEntry{coord: sec.coord, entity: ent})
		}
		sec.entities = sec.entities[:0]
	}
}

// evictOverBudget unloads the farthest active sectors until the budgeted
// set fits again
func (e *Engine) evictOverBudget(sectorBudget int) {
	over := e.countBudgeted() - sectorBudget
	if over <= 0 {
		return
	}
	victims := make([]*sector, 0, over)
	for _, sec := range e.sectors {
		if sec.state == SectorActive && !sec.pinned {
			victims = append(victims, sec)
		}
	}
	sort.Slice(victims, func(i, j int) bool {
		return victims[i].coord.DistanceSq(e.camSector) > victims[j].coord.DistanceSq(e.camSector)
	})
	for i := 0; i < len(victims) && over > 0; i++ {
		e.beginUnload(victims[i])
		over--
	}
}

func (e *Engine) countBudgeted() int {
	n := 0
	for _, sec := range e.sectors {
		if sec.countsAgainstBudget() {
			n++
		}
	}
	return n
}

func (e *Engine) withinRadius(coord core.SectorCoord, radius int) bool {
	dx := coord.X - e.camSector.X
	dz := coord.Z - e.camSector.Z
	if dx < 0 {
		dx = -dx
	}
	if dz < 0 {
		dz = -dz
	}
	return int(dx) <= radius && int(dz) <= radius
}

func (e *Engine) getOrCreate(coord core.SectorCoord) *sector {
	if sec, ok := e.sectors[coord]; ok {
		return sec
	}
	sec := &sector{coord: coord, state: SectorUnloaded, pinned: e.pinned[coord]}
	e.sectors[coord] = sec
	return sec
}
