package streaming

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/simkit/core"
	"github.com/lixenwraith/simkit/engine"
	"github.com/lixenwraith/simkit/job"
	"github.com/lixenwraith/simkit/status"
	"github.com/lixenwraith/simkit/vmath"
)

const testSectorSize = 32.0

// countingLoader returns a fixed number of records per sector and counts
// invocations
type countingLoader struct {
	perSector int
	calls     atomic.Int32
}

func (l *countingLoader) LoadSector(coord core.SectorCoord) ([]SpawnRecord, error) {
	l.calls.Add(1)
	records := make([]SpawnRecord, l.perSector)
	for i := range records {
		records[i] = SpawnRecord{
			Name: fmt.Sprintf("prop_%d_%d_%d", coord.X, coord.Z, i),
			Position: vmath.Vec3F{
				X: float64(coord.X) * testSectorSize,
				Z: float64(coord.Z) * testSectorSize,
			},
			MeshID: uint32(i), MaterialID: 1,
		}
	}
	return records, nil
}

func newTestStreaming(t *testing.T, loader Loader) (*Engine, *engine.World) {
	t.Helper()
	jobs := job.NewEngine(2, 256, 32, job.NewScopeRegistry(), status.NewRegistry())
	t.Cleanup(jobs.Stop)
	return NewEngine(jobs, loader, testSectorSize, status.NewRegistry()), engine.NewWorld()
}

// drainLoads pumps until no load is in flight
func drainLoads(t *testing.T, s *Engine, w *engine.World, entityBudget, maxActivations int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		s.PumpCompletedLoads(w, entityBudget, maxActivations)
		if s.FrameStats().LoadsInFlight == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("Loads did not drain in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func cameraAt(x, z float64) vmath.Vec3F {
	return vmath.Vec3F{X: x, Y: 10, Z: z}
}

var forwardZ = vmath.Vec3F{Z: 1}

// Camera at sector (0,0), load radius 1, budget 9: exactly the 3x3 ring
// around the origin ends up Active
func TestEndToEndRing(t *testing.T) {
	loader := &countingLoader{perSector: 3}
	s, w := newTestStreaming(t, loader)

	s.UpdateActiveSet(cameraAt(16, 16), forwardZ, 1, 2, 9, 0, true)
	s.DispatchPendingLoads(16)
	drainLoads(t, s, w, 1<<20, 1<<20)

	for dz := int32(-1); dz <= 1; dz++ {
		for dx := int32(-1); dx <= 1; dx++ {
			coord := core.SectorCoord{X: dx, Z: dz}
			assert.Equal(t, SectorActive, s.SectorState(coord), "sector %+v", coord)
		}
	}
	assert.Equal(t, 9, s.FrameStats().ActiveSectors)
	assert.EqualValues(t, 9, loader.calls.Load())
	// 9 sectors x 3 records
	assert.Equal(t, 27, w.AliveCount())

	// Move camera far away: everything outside the unload radius drains
	s.UpdateActiveSet(cameraAt(1000, 1000), forwardZ, 1, 2, 9, 0, false)
	for i := 0; i < 64; i++ {
		s.PumpUnloadQueue(w, 8)
	}
	for dz := int32(-1); dz <= 1; dz++ {
		for dx := int32(-1); dx <= 1; dx++ {
			coord := core.SectorCoord{X: dx, Z: dz}
			assert.Equal(t, SectorUnloaded, s.SectorState(coord), "sector %+v", coord)
		}
	}
	assert.Equal(t, 0, w.AliveCount())
}

// maxActivationsPerFrame = 2 with 5 sectors ready: exactly 2 activate,
// nearest to the camera first
func TestActivationBudgetNearestFirst(t *testing.T) {
	loader := &countingLoader{perSector: 1}
	s, w := newTestStreaming(t, loader)

	// Budget of 5 with radius 2 queues the origin plus the four distance-1
	// neighbors
	s.UpdateActiveSet(cameraAt(16, 16), forwardZ, 2, 3, 5, 0, true)
	require.Equal(t, 5, s.FrameStats().QueuedThisFrame)
	require.Greater(t, s.FrameStats().SectorBudgetRejections, 0)

	s.DispatchPendingLoads(16)
	// Drain all results without activating anything
	drainLoads(t, s, w, 1<<20, 0)

	s.PumpCompletedLoads(w, 1<<20, 2)
	stats := s.FrameStats()
	assert.Equal(t, 2, stats.Activations)

	assert.Equal(t, SectorActive, s.SectorState(core.SectorCoord{X: 0, Z: 0}))
	assert.Equal(t, SectorActive, s.SectorState(core.SectorCoord{X: -1, Z: 0}))
	ready := 0
	for _, coord := range []core.SectorCoord{{X: 1, Z: 0}, {X: 0, Z: -1}, {X: 0, Z: 1}} {
		if s.SectorState(coord) == SectorReadyToActivate {
			ready++
		}
	}
	assert.Equal(t, 3, ready, "remaining sectors stay ReadyToActivate")

	// They activate on subsequent frames
	s.PumpCompletedLoads(w, 1<<20, 2)
	s.PumpCompletedLoads(w, 1<<20, 2)
	assert.Equal(t, 5, w.AliveCount())
}

// gatedLoader blocks until released, then reports its generation marker
type gatedLoader struct {
	gate    chan struct{}
	version atomic.Int32
}

func (l *gatedLoader) LoadSector(coord core.SectorCoord) ([]SpawnRecord, error) {
	v := l.version.Load()
	<-l.gate
	return []SpawnRecord{{Name: fmt.Sprintf("v%d", v), MeshID: uint32(v)}}, nil
}

// A result whose captured request id was superseded while in flight must
// not apply
func TestStaleResultDiscarded(t *testing.T) {
	loader := &gatedLoader{gate: make(chan struct{})}
	s, w := newTestStreaming(t, loader)

	origin := core.SectorCoord{X: 0, Z: 0}

	// First request enters flight and blocks inside the loader
	s.UpdateActiveSet(cameraAt(16, 16), forwardZ, 0, 1, 1, 0, true)
	s.DispatchPendingLoads(1)
	require.Equal(t, SectorLoading, s.SectorState(origin))

	// Camera leaves: the sector is cancelled, its request id bumped
	s.UpdateActiveSet(cameraAt(1000, 1000), forwardZ, 0, 1, 1, 0, true)
	require.Equal(t, SectorUnloaded, s.SectorState(origin))

	// Camera returns: a second request for the same coordinate
	loader.version.Store(2)
	s.UpdateActiveSet(cameraAt(16, 16), forwardZ, 0, 1, 1, 0, true)
	s.DispatchPendingLoads(2)

	// Release both loads and drain
	close(loader.gate)
	drainLoads(t, s, w, 1<<20, 1<<20)

	stats := s.FrameStats()
	assert.Equal(t, 1, stats.StaleDiscarded, "superseded result must be discarded")
	require.Equal(t, SectorActive, s.SectorState(origin))

	// Only the second request's payload may be visible
	require.Equal(t, 1, w.AliveCount())
	engine.ForEach(w, func(e core.Entity, r *RenderAsset) {
		assert.EqualValues(t, 2, r.MeshID, "entity list must reflect the latest request")
	})
}

func TestEntityBudgetRejection(t *testing.T) {
	loader := &countingLoader{perSector: 10}
	s, w := newTestStreaming(t, loader)

	s.UpdateActiveSet(cameraAt(16, 16), forwardZ, 0, 1, 1, 0, true)
	s.DispatchPendingLoads(1)
	// Entity budget below one sector's payload: activation is deferred,
	// counted, and never dropped
	drainLoads(t, s, w, 5, 8)
	assert.Equal(t, SectorReadyToActivate, s.SectorState(core.SectorCoord{}))
	assert.Greater(t, s.FrameStats().EntityBudgetRejections, 0)

	// Raising the budget lets the retry succeed
	s.PumpCompletedLoads(w, 100, 8)
	assert.Equal(t, SectorActive, s.SectorState(core.SectorCoord{}))
	assert.Equal(t, 10, w.AliveCount())
}

func TestDespawnBudgetBoundsTeardown(t *testing.T) {
	loader := &countingLoader{perSector: 6}
	s, w := newTestStreaming(t, loader)

	s.UpdateActiveSet(cameraAt(16, 16), forwardZ, 0, 1, 1, 0, true)
	s.DispatchPendingLoads(1)
	drainLoads(t, s, w, 1<<20, 1<<20)
	require.Equal(t, 6, w.AliveCount())

	s.UpdateActiveSet(cameraAt(1000, 1000), forwardZ, 0, 1, 1, 0, false)
	origin := core.SectorCoord{X: 0, Z: 0}
	require.Equal(t, SectorUnloading, s.SectorState(origin))

	// Two frames of budget 4: 4 then 2
	s.PumpUnloadQueue(w, 4)
	assert.Equal(t, 2, w.AliveCount())
	assert.Equal(t, SectorUnloading, s.SectorState(origin))

	s.PumpUnloadQueue(w, 4)
	assert.Equal(t, 0, w.AliveCount())
	assert.Equal(t, SectorUnloaded, s.SectorState(origin))
}

func TestPinnedSectorSurvivesDistance(t *testing.T) {
	loader := &countingLoader{perSector: 1}
	s, w := newTestStreaming(t, loader)

	far := core.SectorCoord{X: 50, Z: 50}
	s.Pin(far)

	// Pinned coordinate loads despite a zero sector budget
	s.UpdateActiveSet(cameraAt(16, 16), forwardZ, 0, 1, 0, 0, true)
	s.DispatchPendingLoads(8)
	drainLoads(t, s, w, 1<<20, 1<<20)
	assert.Equal(t, SectorActive, s.SectorState(far))

	// And survives update passes while pinned
	s.UpdateActiveSet(cameraAt(16, 16), forwardZ, 0, 1, 0, 0, true)
	assert.Equal(t, SectorActive, s.SectorState(far))

	// Unpinned, it unloads normally
	s.Unpin(far)
	s.UpdateActiveSet(cameraAt(16, 16), forwardZ, 0, 1, 0, 0, true)
	for i := 0; i < 8; i++ {
		s.PumpUnloadQueue(w, 8)
	}
	assert.Equal(t, SectorUnloaded, s.SectorState(far))
	assert.Equal(t, 0, w.AliveCount())
}

func TestFrustumBiasPrefersAhead(t *testing.T) {
	loader := &countingLoader{perSector: 0}
	s, _ := newTestStreaming(t, loader)

	s.camSector = core.SectorCoord{}
	desired := s.desiredSet(cameraAt(16, 16), forwardZ, 1, 4.0)
	require.NotEmpty(t, desired)

	// With forward = +Z, the sector ahead must outrank the one behind
	ahead, behind := -1, -1
	for i, d := range desired {
		if d.coord == (core.SectorCoord{X: 0, Z: 1}) {
			ahead = i
		}
		if d.coord == (core.SectorCoord{X: 0, Z: -1}) {
			behind = i
		}
	}
	require.GreaterOrEqual(t, ahead, 0)
	require.GreaterOrEqual(t, behind, 0)
	assert.Less(t, ahead, behind)
}

func TestHysteresisKeepsBoundarySector(t *testing.T) {
	loader := &countingLoader{perSector: 1}
	s, w := newTestStreaming(t, loader)

	s.UpdateActiveSet(cameraAt(16, 16), forwardZ, 1, 3, 9, 0, true)
	s.DispatchPendingLoads(16)
	drainLoads(t, s, w, 1<<20, 1<<20)

	edge := core.SectorCoord{X: 0, Z: 0}
	require.Equal(t, SectorActive, s.SectorState(edge))

	// Camera steps two sectors right: (0,0) leaves the load radius but
	// stays inside the unload radius, so it must not thrash
	s.UpdateActiveSet(cameraAt(16+2*testSectorSize, 16), forwardZ, 1, 3, 9, 0, true)
	assert.Equal(t, SectorActive, s.SectorState(edge))
}

func TestLoadErrorReleasesSlot(t *testing.T) {
	fails := LoaderFunc(func(coord core.SectorCoord) ([]SpawnRecord, error) {
		return nil, fmt.Errorf("corrupt payload at %v", coord)
	})
	s, w := newTestStreaming(t, fails)

	s.UpdateActiveSet(cameraAt(16, 16), forwardZ, 0, 1, 1, 0, true)
	s.DispatchPendingLoads(1)
	drainLoads(t, s, w, 1<<20, 1<<20)

	assert.Equal(t, 1, s.FrameStats().LoadErrors)
	assert.Equal(t, SectorUnloaded, s.SectorState(core.SectorCoord{}))
	assert.Equal(t, 0, w.AliveCount())
}
