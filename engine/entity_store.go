package engine

import (
	"github.com/lixenwraith/simkit/core"
)

// EntityStore is the recycling identifier allocator
// An entity is alive iff its index is in bounds and the stored generation
// matches the handle's generation, so stale handles fail in O(1)
//
// Not internally synchronized: create/destroy belong to the owner thread,
// ordering across systems is the scheduler's dependency graph's job
type EntityStore struct {
	generations []uint8
	freeList    []uint32
	aliveCount  int
}

// NewEntityStore creates an empty store
func NewEntityStore() *EntityStore {
	return &EntityStore{
		generations: make([]uint8, 0, 256),
		freeList:    make([]uint32, 0, 64),
	}
}

// Create allocates a handle, reusing a recycled index when one is free
// A recycled index keeps the generation bumped by Destroy, so the new
// handle never collides with any previously issued handle for that slot
func (s *EntityStore) Create() core.Entity {
	if n := len(s.freeList); n > 0 {
		idx := s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		s.aliveCount++
		return core.MakeEntity(idx, s.generations[idx])
	}

	idx := uint32(len(s.generations))
	if idx >= core.MaxEntities {
		return core.NilEntity
	}
	s.generations = append(s.generations, 0)
	s.aliveCount++
	return core.MakeEntity(idx, 0)
}

// Destroy invalidates a handle and recycles its index
// Returns false if the handle was nil, out of bounds, or stale
func (s *EntityStore) Destroy(e core.Entity) bool {
	if !s.IsAlive(e) {
		return false
	}
	idx := e.Index()
	s.generations[idx]++ // Wraps at 256; accepted aliasing window
	s.freeList = append(s.freeList, idx)
	s.aliveCount--
	return true
}

// IsAlive reports whether the handle references a live slot
func (s *EntityStore) IsAlive(e core.Entity) bool {
	if e.IsNil() {
		return false
	}
	idx := e.Index()
	return idx < uint32(len(s.generations)) && s.generations[idx] == e.Generation()
}

// AliveCount returns the number of live entities
func (s *EntityStore) AliveCount() int {
	return s.aliveCount
}

// Capacity returns the number of slots ever allocated
func (s *EntityStore) Capacity() int {
	return len(s.generations)
}

// Clear destroys every live entity and resets recycling state
// Generations are preserved so handles issued before Clear stay stale
func (s *EntityStore) Clear() {
	s.freeList = s.freeList[:0]
	for i := range s.generations {
		s.generations[i]++
		s.freeList = append(s.freeList, uint32(i))
	}
	s.aliveCount = 0
}
