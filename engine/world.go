package engine

import (
	"github.com/lixenwraith/simkit/core"
)

// World aggregates the entity store and a type-indexed pool table
type World struct {
	Entities *EntityStore

	// Index is ComponentID; nil until first GetPool for that type
	pools     [MaxComponentTypes]erasedPool
	poolCount int
}

// NewWorld creates an empty world
func NewWorld() *World {
	return &World{
		Entities: NewEntityStore(),
	}
}

// Create allocates a new entity handle
func (w *World) Create() core.Entity {
	return w.Entities.Create()
}

// Destroy removes the entity from every pool, then invalidates the handle
func (w *World) Destroy(e core.Entity) bool {
	if !w.Entities.IsAlive(e) {
		return false
	}
	for i := 0; i < MaxComponentTypes; i++ {
		if p := w.pools[i]; p != nil {
			p.removeErased(e)
		}
	}
	return w.Entities.Destroy(e)
}

// IsAlive reports whether the handle references a live entity
func (w *World) IsAlive(e core.Entity) bool {
	return w.Entities.IsAlive(e)
}

// AliveCount returns the number of live entities
func (w *World) AliveCount() int {
	return w.Entities.AliveCount()
}

// Capacity returns the number of entity slots ever allocated
func (w *World) Capacity() int {
	return w.Entities.Capacity()
}

// Clear empties every pool and invalidates all outstanding handles
func (w *World) Clear() {
	for i := 0; i < MaxComponentTypes; i++ {
		if p := w.pools[i]; p != nil {
			p.clearErased()
		}
	}
	w.Entities.Clear()
}

// GetPool returns the pool for component type T, creating it on first use
// Systems cache the pointer at construction; it stays valid for the
// lifetime of the world
func GetPool[T any](w *World) *Pool[T] {
	id := ComponentIDFor[T]()
	if p := w.pools[id]; p != nil {
		return p.(*Pool[T])
	}
	p := NewPool[T]()
	w.pools[id] = p
	w.poolCount++
	return p
}

// Add attaches a component to a live entity
// Returns false for dead or stale handles
func Add[T any](w *World, e core.Entity, val T) bool {
	if !w.Entities.IsAlive(e) {
		return false
	}
	GetPool[T](w).Set(e, val)
	return true
}

// Get returns the entity's component of type T
func Get[T any](w *World, e core.Entity) (*T, bool) {
	return GetPool[T](w).Get(e)
}

// Has reports whether the entity carries a component of type T
func Has[T any](w *World, e core.Entity) bool {
	return GetPool[T](w).Has(e)
}

// Remove detaches the component of type T from the entity
func Remove[T any](w *World, e core.Entity) bool {
	return GetPool[T](w).Remove(e)
}
