package xrootd

import (
	"github.com/wrenchsim/wrench/internal/wlog"
	"github.com/wrenchsim/wrench/pkg/datamodel"
)

// Deployment ties a tree of Nodes to a shared Metavisor and a reduced-
// simulation toggle. ReducedSimulation, when true, skips the broadcast
// search protocol entirely: Read just asks the metavisor directly and
// charges a single SearchBroadcastOverhead at the entry node, trading
// search fidelity for simulation speed on workloads that don't care
// about cache-miss costs.
type Deployment struct {
	Root              *Node
	Metavisor         *Metavisor
	ReducedSimulation bool
	log               wlog.Logger
}

// NewDeployment creates a deployment rooted at root.
func NewDeployment(root *Node, reducedSimulation bool, log wlog.Logger) *Deployment {
	return &Deployment{
		Root:              root,
		Metavisor:         NewMetavisor(),
		ReducedSimulation: reducedSimulation,
		log:               log.With("component", "xrootd"),
	}
}

// AllLeaves returns every leaf node in the deployment.
func (d *Deployment) AllLeaves() []*Node {
	return d.Root.leaves()
}

// InvalidateCache drops any cached location for fileID at every node in
// the deployment, e.g. after a file is deleted or overwritten.
func (d *Deployment) InvalidateCache(fileID string) {
	d.invalidate(d.Root, fileID)
}

func (d *Deployment) invalidate(n *Node, fileID string) {
	n.cache.Invalidate(fileID)
	for _, c := range n.Children {
		d.invalidate(c, fileID)
	}
}

// RegisterFile records, in the deployment's Metavisor, that the leaf
// backing loc now holds a copy of loc.File — the write path's half of
// keeping REDUCED_SIMULATION search and broadcast-search candidate
// selection in sync with what storage actually has. A location whose
// storage doesn't name one of this deployment's leaves is ignored.
func (d *Deployment) RegisterFile(loc *datamodel.FileLocation) {
	if loc == nil || loc.File == nil {
		return
	}
	if leaf := d.findLeaf(loc.Storage); leaf != nil {
		d.Metavisor.Register(loc.File.ID, leaf)
	}
}

// UnregisterFile removes loc.File from the Metavisor's record of what
// the leaf backing loc holds, e.g. after a FileDelete or
// FileRegistryDelete action.
func (d *Deployment) UnregisterFile(loc *datamodel.FileLocation) {
	if loc == nil || loc.File == nil {
		return
	}
	if leaf := d.findLeaf(loc.Storage); leaf != nil {
		d.Metavisor.Unregister(loc.File.ID, leaf)
	}
}

func (d *Deployment) findLeaf(ss datamodel.StorageServiceID) *Node {
	for _, n := range d.AllLeaves() {
		if n.Leaf != nil && n.Leaf.ID() == string(ss) {
			return n
		}
	}
	return nil
}
