package datamodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflow_AddControlDependency(t *testing.T) {
	w := NewWorkflow()
	a, _ := NewWorkflowTask("a", 1, 1, 1, 0, Amdahl(0))
	b, _ := NewWorkflowTask("b", 1, 1, 1, 0, Amdahl(0))
	require.NoError(t, w.AddTask(a))
	require.NoError(t, w.AddTask(b))

	require.NoError(t, w.AddControlDependency("a", "b"))
	assert.Equal(t, TaskReady, a.State)
	assert.Equal(t, TaskNotReady, b.State)
}

func TestWorkflow_AddControlDependency_RejectsCycle(t *testing.T) {
	w := NewWorkflow()
	a, _ := NewWorkflowTask("a", 1, 1, 1, 0, Amdahl(0))
	b, _ := NewWorkflowTask("b", 1, 1, 1, 0, Amdahl(0))
	require.NoError(t, w.AddTask(a))
	require.NoError(t, w.AddTask(b))
	require.NoError(t, w.AddControlDependency("a", "b"))

	err := w.AddControlDependency("b", "a")
	assert.Error(t, err)
}

func TestWorkflow_PromotesChildOnCompletion(t *testing.T) {
	w := NewWorkflow()
	a, _ := NewWorkflowTask("a", 1, 1, 1, 0, Amdahl(0))
	b, _ := NewWorkflowTask("b", 1, 1, 1, 0, Amdahl(0))
	c, _ := NewWorkflowTask("c", 1, 1, 1, 0, Amdahl(0))
	require.NoError(t, w.AddTask(a))
	require.NoError(t, w.AddTask(b))
	require.NoError(t, w.AddTask(c))
	require.NoError(t, w.AddControlDependency("a", "c"))
	require.NoError(t, w.AddControlDependency("b", "c"))

	assert.Equal(t, TaskNotReady, c.State)

	w.MarkTaskCompleted("a")
	assert.Equal(t, TaskNotReady, c.State, "c still has an incomplete parent")

	w.MarkTaskCompleted("b")
	assert.Equal(t, TaskReady, c.State)
}

func TestWorkflow_IsDone(t *testing.T) {
	w := NewWorkflow()
	a, _ := NewWorkflowTask("a", 1, 1, 1, 0, Amdahl(0))
	require.NoError(t, w.AddTask(a))
	assert.False(t, w.IsDone())

	w.MarkTaskCompleted("a")
	assert.True(t, w.IsDone())
}

func TestNewWorkflowTask_RejectsInvertedCoreRange(t *testing.T) {
	_, err := NewWorkflowTask("bad", 1, 4, 2, 0, Amdahl(0))
	assert.Error(t, err)
}

func TestLocationFactory_At_IsFlyweight(t *testing.T) {
	lf := NewLocationFactory()
	reg := NewFileRegistry()
	f := reg.NewDataFile("f1", 1024)

	loc1 := lf.At("ss1", "/a/b", f)
	loc2 := lf.At("ss1", "/a/b/", f)

	assert.Same(t, loc1, loc2, "equal arguments must yield the identical pointer")
}

func TestLocationFactory_ScratchResolve(t *testing.T) {
	lf := NewLocationFactory()
	reg := NewFileRegistry()
	f := reg.NewDataFile("f1", 1024)

	scratch := lf.ScratchLocation(f)
	assert.True(t, scratch.IsScratch)

	resolved := lf.Resolve(scratch, "cs1")
	assert.False(t, resolved.IsScratch)
	assert.Equal(t, StorageServiceID("scratch@cs1"), resolved.Storage)
}

func TestParallelModel_Amdahl(t *testing.T) {
	m := Amdahl(0.25)
	seq, perThread := m.Split(100, 4)
	assert.Equal(t, 25.0, seq)
	assert.Equal(t, 75.0/4, perThread)
}

func TestParallelModel_ConstantEfficiency(t *testing.T) {
	m := ConstantEfficiency(0.5)
	seq, perThread := m.Split(100, 2)
	assert.Equal(t, 0.0, seq)
	assert.Equal(t, 100.0, perThread)
}

func TestParallelModel_Custom(t *testing.T) {
	m, err := Custom("flops * 0.1", "(flops * 0.9) / cores")
	require.NoError(t, err)

	seq, perThread := m.Split(200, 2)
	assert.InDelta(t, 20.0, seq, 0.0001)
	assert.InDelta(t, 90.0, perThread, 0.0001)
}
