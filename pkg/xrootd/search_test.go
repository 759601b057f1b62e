package xrootd

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wrenchsim/wrench/internal/simcore"
	"github.com/wrenchsim/wrench/internal/wlog"
	"github.com/wrenchsim/wrench/pkg/datamodel"
	"github.com/wrenchsim/wrench/pkg/failure"
	"github.com/wrenchsim/wrench/pkg/storage"
)

// buildTree wires a two-level federation: a root supervisor over two
// sub-supervisors, each fronting two leaves, every leaf backed by its
// own host and SimpleStorageService. The tree is three nodes deep
// (root, supervisor, leaf).
func buildTree(t *testing.T, sim *simcore.Simulation, cacheTTL time.Duration) (*Node, []*storage.SimpleStorageService) {
	t.Helper()
	log := wlog.Default()
	props := storage.Properties{
		CacheMaxLifetime:        cacheTTL,
		SearchBroadcastOverhead: 0.01,
		MessageOverhead:         0.001,
		CacheLookupOverhead:     0.001,
		UpdateCacheOverhead:     0.001,
	}

	root := NewNode("root", cacheTTL)
	var svcs []*storage.SimpleStorageService
	for i := 0; i < 2; i++ {
		sup := NewNode(fmt.Sprintf("sup%d", i), cacheTTL)
		root.AddChild(sup)
		for j := 0; j < 2; j++ {
			name := fmt.Sprintf("leaf-%d-%d", i, j)
			host := sim.AddHost(simcore.NewHost(name+"-host", 1, 1e9, 1<<30, 1e9, sim.Clock()))
			svc := storage.New(sim, name, host, 1<<40, props, log)
			svcs = append(svcs, svc)
			sup.AddChild(NewLeaf(name, svc, cacheTTL))
		}
	}
	return root, svcs
}

// writeFile writes file to svc and registers it with deployment's
// Metavisor at leaf, mirroring what compute.BareMetalComputeService's
// CacheInvalidator hook does for a FileWrite action that completes
// against a leaf fronted by an XRootD overlay.
func writeFile(t *testing.T, ctx context.Context, sim *simcore.Simulation, deployment *Deployment, leaf *Node, svc *storage.SimpleStorageService, lf *datamodel.LocationFactory, file *datamodel.DataFile) *datamodel.FileLocation {
	t.Helper()
	loc := lf.At(datamodel.StorageServiceID(svc.ID()), "/"+file.ID, file)
	err := storage.TransferViaMailbox(ctx, sim, svc.Mailbox().Name(), storage.WriteRequest{
		Location: loc,
		NumBytes: file.SizeBytes,
	})
	require.NoError(t, err)
	deployment.Metavisor.Register(file.ID, leaf)
	return loc
}

// TestDeployment_Read_BroadcastFindsFile mirrors spec.md scenario S3: a
// read against a federation entry point with nothing cached falls back
// to a broadcast search that finds the file on a distant leaf, then
// caches the winning location back up the search path.
func TestDeployment_Read_BroadcastFindsFile(t *testing.T) {
	sim := simcore.New(context.Background())
	root, svcs := buildTree(t, sim, time.Minute)
	deployment := NewDeployment(root, false, wlog.Default())

	registry := datamodel.NewFileRegistry()
	lf := datamodel.NewLocationFactory()
	file := registry.NewDataFile("f1", 1<<20)

	// Place the file on the last leaf, farthest from the entry point.
	farLeaf := root.Children[1].Children[1]
	loc := writeFile(t, context.Background(), sim, deployment, farLeaf, svcs[len(svcs)-1], lf, file)

	entry := root.Children[0].Children[0]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resolved, err := deployment.Read(ctx, sim, lf, file, entry)
	require.NoError(t, err)
	assert.Equal(t, loc.Storage, resolved.Storage)

	cached, ok := entry.cache.Get(file.ID, sim.Clock().Now())
	require.True(t, ok, "entry node should cache the found location")
	assert.Equal(t, loc.Storage, cached[0].Storage)
}

// TestDeployment_Read_CacheHitSkipsBroadcast mirrors spec.md scenario
// S3's cache-hit path: once a location is cached at the entry node, a
// second read resolves from cache without another broadcast round.
func TestDeployment_Read_CacheHitSkipsBroadcast(t *testing.T) {
	sim := simcore.New(context.Background())
	root, svcs := buildTree(t, sim, time.Minute)
	deployment := NewDeployment(root, false, wlog.Default())

	registry := datamodel.NewFileRegistry()
	lf := datamodel.NewLocationFactory()
	file := registry.NewDataFile("f1", 1<<20)
	leaf := root.Children[0].Children[0]
	loc := writeFile(t, context.Background(), sim, deployment, leaf, svcs[0], lf, file)

	entry := root.Children[0].Children[0]
	entry.cache.Put(file.ID, loc, sim.Clock().Now())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resolved, err := deployment.Read(ctx, sim, lf, file, entry)
	require.NoError(t, err)
	assert.Equal(t, loc.Storage, resolved.Storage)
}

// TestDeployment_Read_CacheExpires mirrors spec.md scenario S4: a cache
// entry older than the node's configured lifetime is treated as a miss
// and falls through to broadcast search.
func TestDeployment_Read_CacheExpires(t *testing.T) {
	sim := simcore.New(context.Background())
	root, svcs := buildTree(t, sim, time.Millisecond)
	deployment := NewDeployment(root, false, wlog.Default())

	registry := datamodel.NewFileRegistry()
	lf := datamodel.NewLocationFactory()
	file := registry.NewDataFile("f1", 1<<20)
	farLeaf := root.Children[1].Children[1]
	loc := writeFile(t, context.Background(), sim, deployment, farLeaf, svcs[len(svcs)-1], lf, file)

	entry := root.Children[0].Children[0]
	stale := lf.At(datamodel.StorageServiceID("stale-service"), "/"+file.ID, file)
	entry.cache.Put(file.ID, stale, sim.Clock().Now().Add(-time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resolved, err := deployment.Read(ctx, sim, lf, file, entry)
	require.NoError(t, err)
	assert.Equal(t, loc.Storage, resolved.Storage, "expired cache entry must not be returned")
}

// TestDeployment_Read_UnregisteredFileNotFound confirms the broadcast
// path only searches leaves the Metavisor names: a file written straight
// to a leaf's storage without ever being registered is not found, even
// though the leaf itself holds the bytes.
func TestDeployment_Read_UnregisteredFileNotFound(t *testing.T) {
	sim := simcore.New(context.Background())
	root, svcs := buildTree(t, sim, time.Minute)
	deployment := NewDeployment(root, false, wlog.Default())

	registry := datamodel.NewFileRegistry()
	lf := datamodel.NewLocationFactory()
	file := registry.NewDataFile("f1", 1<<20)

	loc := lf.At(datamodel.StorageServiceID(svcs[len(svcs)-1].ID()), "/"+file.ID, file)
	err := storage.TransferViaMailbox(context.Background(), sim, svcs[len(svcs)-1].Mailbox().Name(), storage.WriteRequest{
		Location: loc,
		NumBytes: file.SizeBytes,
	})
	require.NoError(t, err)

	entry := root.Children[0].Children[0]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = deployment.Read(ctx, sim, lf, file, entry)
	require.Error(t, err)
	cause, ok := err.(failure.Cause)
	require.True(t, ok)
	assert.Equal(t, "FileNotFound", cause.Kind())
}

// TestDeployment_Read_MissingFile mirrors spec.md scenario S5: a file
// present nowhere in the federation fails the read with FileNotFound.
func TestDeployment_Read_MissingFile(t *testing.T) {
	sim := simcore.New(context.Background())
	root, _ := buildTree(t, sim, time.Minute)
	deployment := NewDeployment(root, false, wlog.Default())

	registry := datamodel.NewFileRegistry()
	lf := datamodel.NewLocationFactory()
	file := registry.NewDataFile("missing", 1<<20)

	entry := root.Children[0].Children[0]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := deployment.Read(ctx, sim, lf, file, entry)
	require.Error(t, err)
	cause, ok := err.(failure.Cause)
	require.True(t, ok)
	assert.Equal(t, "FileNotFound", cause.Kind())
}

// TestDeployment_Read_ReducedSimulation mirrors the REDUCED_SIMULATION
// fast path: resolution goes through the metavisor directly, skipping
// the broadcast protocol entirely.
func TestDeployment_Read_ReducedSimulation(t *testing.T) {
	sim := simcore.New(context.Background())
	root, svcs := buildTree(t, sim, time.Minute)
	deployment := NewDeployment(root, true, wlog.Default())

	registry := datamodel.NewFileRegistry()
	lf := datamodel.NewLocationFactory()
	file := registry.NewDataFile("f1", 1<<20)
	leaf := root.Children[0].Children[0]
	loc := writeFile(t, context.Background(), sim, deployment, leaf, svcs[0], lf, file)

	entry := root.Children[1].Children[0]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resolved, err := deployment.Read(ctx, sim, lf, file, entry)
	require.NoError(t, err)
	assert.Equal(t, loc.Storage, resolved.Storage)
}

// TestEntryReader_Resolve confirms EntryReader satisfies
// action.LocationResolver and forwards through to Deployment.Read.
func TestEntryReader_Resolve(t *testing.T) {
	sim := simcore.New(context.Background())
	root, svcs := buildTree(t, sim, time.Minute)
	deployment := NewDeployment(root, false, wlog.Default())

	registry := datamodel.NewFileRegistry()
	lf := datamodel.NewLocationFactory()
	file := registry.NewDataFile("f1", 1<<20)
	leaf := root.Children[0].Children[0]
	loc := writeFile(t, context.Background(), sim, deployment, leaf, svcs[0], lf, file)

	entry := root.Children[0].Children[0]
	reader := &EntryReader{Deployment: deployment, Entry: entry, Sim: sim, Factory: lf}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resolved, err := reader.Resolve(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, loc.Storage, resolved.Storage)
}
