package streaming

import (
	"github.com/lixenwraith/simkit/core"
	"github.com/lixenwraith/simkit/vmath"
)

// SectorState is the load-state machine of one grid cell
// Unloaded -> Queued -> Loading -> ReadyToActivate -> Active -> Unloading -> Unloaded
type SectorState uint8

const (
	SectorUnloaded SectorState = iota
	SectorQueued
	SectorLoading
	SectorReadyToActivate
	SectorActive
	SectorUnloading
)

// String returns the state name for diagnostics
func (s SectorState) String() string {
	switch s {
	case SectorUnloaded:
		return "unloaded"
	case SectorQueued:
		return "queued"
	case SectorLoading:
		return "loading"
	case SectorReadyToActivate:
		return "ready"
	case SectorActive:
		return "active"
	case SectorUnloading:
		return "unloading"
	}
	return "invalid"
}

// Bounds is a local-space axis-aligned box
type Bounds struct {
	Min, Max vmath.Vec3F
}

// SpawnRecord is one entity the loader wants instantiated
// The on-disk byte layout producing these is an external codec's concern
type SpawnRecord struct {
	Name       string
	Position   vmath.Vec3F
	MeshID     uint32
	MaterialID uint32
	Bounds     Bounds
}

// Loader produces a sector's payload; invoked off the simulation thread
// Implementations must be safe for concurrent calls on different sectors
type Loader interface {
	LoadSector(coord core.SectorCoord) ([]SpawnRecord, error)
}

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc func(coord core.SectorCoord) ([]SpawnRecord, error)

func (f LoaderFunc) LoadSector(coord core.SectorCoord) ([]SpawnRecord, error) {
	return f(coord)
}

// sector is the per-coordinate bookkeeping record
// Created lazily on first reference; cleared, not deleted, on unload so
// re-entering the coordinate is cheap
type sector struct {
	coord core.SectorCoord
	state SectorState

	// Bumped each time the sector re-enters the load pipeline; async
	// results carrying an older id are stale and discarded
	requestID uint32

	entities        []core.Entity
	pendingDespawns int
	pinned          bool

	// Payload parked between ReadyToActivate and Active
	records []SpawnRecord

	// Scratch set by the desired-set pass each frame
	distSq   int64
	priority float64
}

func (s *sector) clear() {
	s.state = SectorUnloaded
	s.entities = s.entities[:0]
	s.pendingDespawns = 0
	s.records = nil
}

// countsAgainstBudget reports whether the sector occupies a slot of the
// global active/queued sector budget
func (s *sector) countsAgainstBudget() bool {
	switch s.state {
	case SectorQueued, SectorLoading, SectorReadyToActivate, SectorActive:
		return true
	}
	return false
}

// Components attached to activated sector entities

// Placement is the world transform of a streamed entity
type Placement struct {
	Position vmath.Vec3F
	Bounds   Bounds
}

// RenderAsset references the mesh and material the render layer binds
type RenderAsset struct {
	MeshID     uint32
	MaterialID uint32
}

// SectorTag links a streamed entity back to its owning sector
type SectorTag struct {
	Coord core.SectorCoord
}
