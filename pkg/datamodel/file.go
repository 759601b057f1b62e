// Package datamodel holds the static, serializable objects a simulation is
// built out of: files, storage locations, parallel speedup models, and the
// task/workflow DAG that drives a run. Nothing in this package touches the
// simulated clock or hosts — it is pure data plus the small amount of logic
// that shapes that data (cycle checks, readiness, flyweight dedup).
package datamodel

import "sync"

// DataFile is an immutable named byte blob. Equality is by ID, matching
// the flyweight contract FileLocation relies on.
type DataFile struct {
	ID        string
	SizeBytes int64
}

// Equal reports whether two files share the same ID.
func (f *DataFile) Equal(other *DataFile) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.ID == other.ID
}

// FileRegistry is the Simulation-scoped table of known files, keyed by ID.
// Mirrors the "process-wide structures" pattern used for mailboxes and
// file locations: one canonical owner, looked up rather than copied.
type FileRegistry struct {
	mu    sync.RWMutex
	files map[string]*DataFile
}

// NewFileRegistry creates an empty registry.
func NewFileRegistry() *FileRegistry {
	return &FileRegistry{files: make(map[string]*DataFile)}
}

// NewDataFile registers and returns a new file. Registering the same ID
// twice with different sizes is a caller bug; the second call silently
// wins, consistent with the registry being a lookup table, not a store
// with update semantics.
func (r *FileRegistry) NewDataFile(id string, sizeBytes int64) *DataFile {
	f := &DataFile{ID: id, SizeBytes: sizeBytes}
	r.mu.Lock()
	r.files[id] = f
	r.mu.Unlock()
	return f
}

// Get looks up a previously registered file by ID.
func (r *FileRegistry) Get(id string) (*DataFile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.files[id]
	return f, ok
}
