package visualization

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wrenchsim/wrench/internal/simcore"
	"github.com/wrenchsim/wrench/internal/wlog"
	"github.com/wrenchsim/wrench/pkg/datamodel"
	"github.com/wrenchsim/wrench/pkg/storage"
	"github.com/wrenchsim/wrench/pkg/xrootd"
)

func TestRenderWorkflow_LinearChain(t *testing.T) {
	wf := datamodel.NewWorkflow()
	ids := []string{"t1", "t2", "t3"}
	var prev string
	for _, id := range ids {
		task, err := datamodel.NewWorkflowTask(id, 1e9, 1, 1, 1<<20, datamodel.Amdahl(0))
		require.NoError(t, err)
		require.NoError(t, wf.AddTask(task))
		if prev != "" {
			require.NoError(t, wf.AddControlDependency(prev, id))
		}
		prev = id
	}

	out := RenderWorkflow(wf, DefaultRenderOptions())
	assert.True(t, strings.HasPrefix(out, "flowchart TB\n"))
	for _, id := range ids {
		assert.Contains(t, out, id)
	}
	assert.Contains(t, out, "t1 --> t2")
	assert.Contains(t, out, "t2 --> t3")
}

func TestRenderWorkflow_DirectionOverride(t *testing.T) {
	wf := datamodel.NewWorkflow()
	task, err := datamodel.NewWorkflowTask("solo", 1e9, 1, 1, 1<<20, datamodel.Amdahl(0))
	require.NoError(t, err)
	require.NoError(t, wf.AddTask(task))

	out := RenderWorkflow(wf, &RenderOptions{Direction: "LR"})
	assert.True(t, strings.HasPrefix(out, "flowchart LR\n"))
}

func TestRenderXRootDTree_SupervisorsAndLeaves(t *testing.T) {
	sim := simcore.New(context.Background())
	log := wlog.Default()

	root := xrootd.NewNode("root", time.Minute)
	super := xrootd.NewNode("super1", time.Minute)
	root.AddChild(super)

	host := sim.AddHost(simcore.NewHost("leaf-host", 1, 1e9, 1<<30, 1e9, sim.Clock()))
	svc := storage.New(sim, "leaf0", host, 1<<40, storage.Properties{}, log)
	super.AddChild(xrootd.NewLeaf("leaf0", svc, time.Minute))

	out := RenderXRootDTree(root, DefaultRenderOptions())
	assert.True(t, strings.HasPrefix(out, "flowchart TB\n"))
	assert.Contains(t, out, `root["root"]`)
	assert.Contains(t, out, `super1["super1"]`)
	assert.Contains(t, out, `leaf0[("leaf0")]`)
	assert.Contains(t, out, "root --> super1")
	assert.Contains(t, out, "super1 --> leaf0")
}

func TestMermaidID_SanitizesPunctuation(t *testing.T) {
	assert.Equal(t, "a_b_c", mermaidID("a.b-c"))
}
