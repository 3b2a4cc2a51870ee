package engine

import (
	"github.com/lixenwraith/simkit/core"
)

// Pool is a sparse-set component store for type T
// dense/owners are parallel arrays packed for cache-friendly iteration;
// sparse maps entity index -> dense slot + 1, zero meaning absent
//
// Not internally synchronized: concurrent mutation of one pool from two
// systems is coordinated by the scheduler's dependency graph, not here
type Pool[T any] struct {
	dense  []T
	owners []core.Entity
	sparse []uint32
}

// NewPool creates an empty pool for component type T
func NewPool[T any]() *Pool[T] {
	return &Pool[T]{
		dense:  make([]T, 0, 64),
		owners: make([]core.Entity, 0, 64),
	}
}

// Set inserts or overwrites the component for an entity, O(1)
func (p *Pool[T]) Set(e core.Entity, val T) {
	idx := e.Index()
	p.growSparse(idx)

	if slot := p.sparse[idx]; slot != 0 {
		p.dense[slot-1] = val
		p.owners[slot-1] = e
		return
	}

	p.dense = append(p.dense, val)
	p.owners = append(p.owners, e)
	p.sparse[idx] = uint32(len(p.dense))
}

// Get returns a pointer to the entity's component, valid until the next
// structural change to the pool
func (p *Pool[T]) Get(e core.Entity) (*T, bool) {
	idx := e.Index()
	if idx >= uint32(len(p.sparse)) {
		return nil, false
	}
	slot := p.sparse[idx]
	if slot == 0 || p.owners[slot-1] != e {
		return nil, false
	}
	return &p.dense[slot-1], true
}

// Has reports whether the entity carries this component, O(1)
func (p *Pool[T]) Has(e core.Entity) bool {
	idx := e.Index()
	if idx >= uint32(len(p.sparse)) {
		return false
	}
	slot := p.sparse[idx]
	return slot != 0 && p.owners[slot-1] == e
}

// Remove deletes the entity's component by swapping the last dense element
// into its slot and truncating. O(1), dense order is not preserved
func (p *Pool[T]) Remove(e core.Entity) bool {
	idx := e.Index()
	if idx >= uint32(len(p.sparse)) {
		return false
	}
	slot := p.sparse[idx]
	if slot == 0 || p.owners[slot-1] != e {
		return false
	}

	last := uint32(len(p.dense))
	if slot != last {
		moved := p.owners[last-1]
		p.dense[slot-1] = p.dense[last-1]
		p.owners[slot-1] = moved
		p.sparse[moved.Index()] = slot
	}

	var zero T
	p.dense[last-1] = zero // Release references held by the component
	p.dense = p.dense[:last-1]
	p.owners = p.owners[:last-1]
	p.sparse[idx] = 0
	return true
}

// Len returns the number of stored components
func (p *Pool[T]) Len() int {
	return len(p.dense)
}

// EntityAt returns the owning entity of a dense slot
// Used by views to drive iteration off this pool's packed array
func (p *Pool[T]) EntityAt(i int) core.Entity {
	return p.owners[i]
}

// At returns a pointer to the component at a dense slot
func (p *Pool[T]) At(i int) *T {
	return &p.dense[i]
}

func (p *Pool[T]) growSparse(idx uint32) {
	for uint32(len(p.sparse)) <= idx {
		p.sparse = append(p.sparse, 0)
	}
}

// removeErased implements erasedPool for type-independent destroy paths
func (p *Pool[T]) removeErased(e core.Entity) {
	p.Remove(e)
}

// clearErased implements erasedPool
func (p *Pool[T]) clearErased() {
	var zero T
	for i := range p.dense {
		p.dense[i] = zero
	}
	p.dense = p.dense[:0]
	p.owners = p.owners[:0]
	for i := range p.sparse {
		p.sparse[i] = 0
	}
}

// erasedPool is the type-independent face of a Pool, enough for World to
// sweep an entity out of every pool without knowing component types
type erasedPool interface {
	removeErased(e core.Entity)
	clearErased()
}
