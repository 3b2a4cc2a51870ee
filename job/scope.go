package job

import (
	"sync"
)

// ScopeID names a telemetry timing scope
// Zero is always valid and maps to the shared "unscoped" bucket
type ScopeID uint16

// MaxScopes bounds the process-wide scope name table
// Unrelated subsystems log timings under the same name without
// coordinating ownership, so the table is append-only
const MaxScopes = 256

// ScopeRegistry maps scope names to stable IDs
// Pass one registry through construction instead of a package singleton;
// the engine and scheduler share it so their timings land in one table
type ScopeRegistry struct {
	mu    sync.RWMutex
	names []string
	index map[string]ScopeID
}

// NewScopeRegistry creates a registry with the reserved unscoped entry
func NewScopeRegistry() *ScopeRegistry {
	r := &ScopeRegistry{
		names: make([]string, 1, 32),
		index: make(map[string]ScopeID, 32),
	}
	r.names[0] = "unscoped"
	r.index["unscoped"] = 0
	return r
}

// Register returns the ID for name, assigning one on first use
// When the table is full every new name collapses into the unscoped bucket
func (r *ScopeRegistry) Register(name string) ScopeID {
	r.mu.RLock()
	if id, ok := r.index[name]; ok {
		r.mu.RUnlock()
		return id
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.index[name]; ok {
		return id
	}
	if len(r.names) >= MaxScopes {
		return 0
	}
	id := ScopeID(len(r.names))
	r.names = append(r.names, name)
	r.index[name] = id
	return id
}

// Name returns the registered name for an ID
func (r *ScopeRegistry) Name(id ScopeID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.names) {
		return "unscoped"
	}
	return r.names[id]
}

// Count returns the number of registered scopes
func (r *ScopeRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}
