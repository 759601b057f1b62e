package xrootd

import "sync"

// Metavisor is the federation's top-level file-to-leaf-set registry: the
// authoritative record of which leaves hold a copy of a given file,
// queried by REDUCED_SIMULATION mode and to choose the leaves a
// broadcast search visits.
// It is not itself a tree node — every deployment has exactly one.
type Metavisor struct {
	mu            sync.RWMutex
	leavesForFile map[string][]*Node
}

// NewMetavisor creates an empty metavisor.
func NewMetavisor() *Metavisor {
	return &Metavisor{leavesForFile: make(map[string][]*Node)}
}

// Register records that leaf holds a copy of fileID.
func (m *Metavisor) Register(fileID string, leaf *Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leavesForFile[fileID] {
		if l == leaf {
			return
		}
	}
	m.leavesForFile[fileID] = append(m.leavesForFile[fileID], leaf)
}

// Unregister removes leaf from fileID's known-location set.
func (m *Metavisor) Unregister(fileID string, leaf *Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.leavesForFile[fileID]
	for i, l := range list {
		if l == leaf {
			m.leavesForFile[fileID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Leaves returns the leaves currently known to hold fileID.
func (m *Metavisor) Leaves(fileID string) []*Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Node, len(m.leavesForFile[fileID]))
	copy(out, m.leavesForFile[fileID])
	return out
}
