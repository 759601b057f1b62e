package xrootd

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wrenchsim/wrench/internal/metrics"
	"github.com/wrenchsim/wrench/internal/simcore"
	"github.com/wrenchsim/wrench/pkg/datamodel"
	"github.com/wrenchsim/wrench/pkg/failure"
)

// EntryReader binds a fixed (deployment, entry node) pair into
// action.LocationResolver's shape, so a FileRead action can be built
// against an XRootD federation without pkg/action ever importing this
// package: Go interface satisfaction here is structural.
type EntryReader struct {
	Deployment *Deployment
	Entry      *Node
	Sim        *simcore.Simulation
	Factory    *datamodel.LocationFactory
}

// Resolve looks file up through r.Deployment starting at r.Entry.
func (r *EntryReader) Resolve(ctx context.Context, file *datamodel.DataFile) (*datamodel.FileLocation, error) {
	return r.Deployment.Read(ctx, r.Sim, r.Factory, file, r.Entry)
}

// searchResult is what a winning branch of a broadcast reports back.
type searchResult struct {
	stack SearchStack
	loc   *datamodel.FileLocation
}

// Read resolves file's location starting the search at entry, which must
// be a leaf node (the storage front-end nearest the requesting action).
// It probes entry's cache first, then — unless the deployment runs in
// ReducedSimulation mode — broadcasts a search toward every leaf the
// Metavisor says might hold the file, charging per-hop message overhead
// and caching the winning location on every node of the winning path
// and at entry. A file
// the Metavisor has no record of is reported FileNotFound without
// touching the tree at all.
func (d *Deployment) Read(ctx context.Context, sim *simcore.Simulation, lf *datamodel.LocationFactory, file *datamodel.DataFile, entry *Node) (*datamodel.FileLocation, error) {
	entryHost := entry.Host()
	props := nodeProps(entry)

	if locs, ok := entry.cache.Get(file.ID, sim.Clock().Now()); ok && len(locs) > 0 {
		if entryHost != nil {
			if err := entryHost.ComputeFor(ctx, props.CacheLookupOverhead); err != nil {
				return nil, toCause(err, entryHost.ID)
			}
		}
		metrics.XRootDCacheHitsTotal.WithLabelValues(entry.ID, "hit").Inc()
		return locs[0], nil
	}
	metrics.XRootDCacheHitsTotal.WithLabelValues(entry.ID, "miss").Inc()

	if d.ReducedSimulation {
		leaves := d.Metavisor.Leaves(file.ID)
		if len(leaves) == 0 {
			return nil, &failure.FileNotFound{FileID: file.ID, Location: "xrootd"}
		}
		winner := leaves[0]
		loc := lf.At(datamodel.StorageServiceID(winner.Leaf.ID()), "/"+file.ID, file)
		if entryHost != nil {
			if err := entryHost.ComputeFor(ctx, props.SearchBroadcastOverhead); err != nil {
				return nil, toCause(err, entryHost.ID)
			}
		}
		entry.cache.Put(file.ID, loc, sim.Clock().Now())
		return loc, nil
	}

	if entryHost != nil {
		if err := entryHost.ComputeFor(ctx, props.SearchBroadcastOverhead); err != nil {
			return nil, toCause(err, entryHost.ID)
		}
	}

	candidates := d.Metavisor.Leaves(file.ID)
	if len(candidates) == 0 {
		return nil, &failure.FileNotFound{FileID: file.ID, Location: "xrootd"}
	}

	metrics.XRootDBroadcastSearchesTotal.WithLabelValues(entry.ID).Inc()

	ttl := 1024
	searchCtx, cancel := context.WithTimeout(ctx, time.Duration(2*treeDepth(d.Root)+1)*time.Second)
	defer cancel()

	var found atomic.Bool
	results := make(chan searchResult, len(candidates))
	var wg sync.WaitGroup

	d.broadcast(searchCtx, file, lf, candidates, ttl, &found, results, &wg)

	go func() {
		wg.Wait()
		close(results)
	}()

	var winner *searchResult
	for r := range results {
		if winner == nil {
			rCopy := r
			winner = &rCopy
		}
	}

	if winner == nil {
		return nil, &failure.FileNotFound{FileID: file.ID, Location: "xrootd"}
	}

	d.propagateUpdateCache(ctx, file.ID, winner.loc, winner.stack, sim.Clock().Now(), props)
	entry.cache.Put(file.ID, winner.loc, sim.Clock().Now())
	return winner.loc, nil
}

// broadcast constructs one SearchStack per leaf the Metavisor says might
// hold file, and searches only along those paths — not the whole tree —
// per spec.md's "one stack per leaf known (from the metavisor) to
// possibly hold the file" rule.
func (d *Deployment) broadcast(ctx context.Context, file *datamodel.DataFile, lf *datamodel.LocationFactory, candidates []*Node, ttl int, found *atomic.Bool, results chan<- searchResult, wg *sync.WaitGroup) {
	for _, leaf := range candidates {
		wg.Add(1)
		go d.searchLeaf(ctx, leaf, file, lf, pathToRoot(leaf), ttl, found, results, wg)
	}
}

// searchLeaf walks path (root to leaf) charging one MessageOverhead hop
// per node, then checks whether leaf's storage actually has the file —
// the Metavisor is a hint, not a guarantee, since a file can be deleted
// without the search path ever learning about it mid-flight.
func (d *Deployment) searchLeaf(ctx context.Context, leaf *Node, file *datamodel.DataFile, lf *datamodel.LocationFactory, path []*Node, ttl int, found *atomic.Bool, results chan<- searchResult, wg *sync.WaitGroup) {
	defer wg.Done()

	if len(path) > ttl {
		return
	}

	for _, n := range path {
		if found.Load() || ctx.Err() != nil {
			return
		}
		props := nodeProps(n)
		if h := n.Host(); h != nil {
			if err := h.ComputeFor(ctx, props.MessageOverhead); err != nil {
				return
			}
		}
	}

	stack := SearchStack{Path: path}
	msg := ContinueSearch{FileID: file.ID, Stack: stack, TTL: ttl}
	d.log.With("node", leaf.ID).WithInt("ttl", msg.TTL).Debug("continuing search")

	if leaf.Leaf == nil {
		return
	}
	loc := lf.At(datamodel.StorageServiceID(leaf.Leaf.ID()), "/"+file.ID, file)
	if leaf.Leaf.LookupFile(loc) {
		if found.CompareAndSwap(false, true) {
			results <- searchResult{stack: stack, loc: loc}
		}
	}
}

// pathToRoot returns the root-to-n path through the tree, walking n's
// Parent chain and reversing it.
func pathToRoot(n *Node) []*Node {
	var rev []*Node
	for cur := n; cur != nil; cur = cur.Parent {
		rev = append(rev, cur)
	}
	path := make([]*Node, len(rev))
	for i, node := range rev {
		path[len(rev)-1-i] = node
	}
	return path
}

func (d *Deployment) propagateUpdateCache(ctx context.Context, fileID string, loc *datamodel.FileLocation, stack SearchStack, now time.Time, props storageOverheads) {
	for _, n := range stack.Path {
		n.cache.Put(fileID, loc, now)
		if h := n.Host(); h != nil {
			_ = h.ComputeFor(ctx, props.UpdateCacheOverhead)
		}
	}
}

func treeDepth(n *Node) int {
	if len(n.Children) == 0 {
		return 1
	}
	max := 0
	for _, c := range n.Children {
		if d := treeDepth(c); d > max {
			max = d
		}
	}
	return max + 1
}

// storageOverheads mirrors the XRootD-related fields of storage.Properties,
// read off whichever leaf is nearest a node so overhead charging doesn't
// need the storage package's Properties type exported through every call.
type storageOverheads struct {
	CacheMaxLifetime        time.Duration
	SearchBroadcastOverhead float64
	MessageOverhead         float64
	CacheLookupOverhead     float64
	UpdateCacheOverhead     float64
}

func nodeProps(n *Node) storageOverheads {
	if n.Leaf == nil {
		return storageOverheads{}
	}
	p := n.Leaf.Properties()
	return storageOverheads{
		CacheMaxLifetime:        p.CacheMaxLifetime,
		SearchBroadcastOverhead: p.SearchBroadcastOverhead,
		MessageOverhead:         p.MessageOverhead,
		CacheLookupOverhead:     p.CacheLookupOverhead,
		UpdateCacheOverhead:     p.UpdateCacheOverhead,
	}
}

func toCause(err error, hostID string) failure.Cause {
	if cause, ok := err.(failure.Cause); ok {
		return cause
	}
	if err == simcore.ErrHostDown {
		return &failure.HostError{HostID: hostID}
	}
	return &failure.FatalFailure{Message: err.Error()}
}
