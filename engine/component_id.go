package engine

import (
	"fmt"
	"reflect"
	"sync"
)

// ComponentID is a process-wide identifier for a component type
// IDs are assigned by a monotonic counter on first use, so pool lookup
// is an array index instead of a map probe
type ComponentID uint32

// MaxComponentTypes bounds the per-world pool table
const MaxComponentTypes = 256

var (
	componentMu sync.Mutex
	nextID      ComponentID
	typeToID    = make(map[reflect.Type]ComponentID, MaxComponentTypes)
)

// ComponentIDFor returns the stable ID for component type T, assigning one
// on first use. Panics when the type table is exhausted
func ComponentIDFor[T any]() ComponentID {
	var zero T
	t := reflect.TypeOf(zero)

	componentMu.Lock()
	defer componentMu.Unlock()

	if id, ok := typeToID[t]; ok {
		return id
	}
	if int(nextID) >= MaxComponentTypes {
		panic(fmt.Sprintf("component type table exhausted (%d types), cannot register %v", MaxComponentTypes, t))
	}
	id := nextID
	nextID++
	typeToID[t] = id
	return id
}
