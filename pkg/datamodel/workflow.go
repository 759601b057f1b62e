package datamodel

import (
	"fmt"
	"sync"
)

// Workflow is a DAG of WorkflowTask nodes connected by control
// dependencies, plus the file-provenance maps needed to answer "who
// produces/consumes this file" without scanning every task. Cycle
// rejection happens at insert time via a DFS reachability check — the
// same check mbflow's topological sort uses to detect cycles, applied
// here as a guard before the edge is ever added rather than as a
// post-hoc validation pass.
type Workflow struct {
	mu            sync.RWMutex
	tasks         map[string]*WorkflowTask
	fileProducer  map[string]string   // fileID -> taskID
	fileConsumers map[string][]string // fileID -> []taskID
}

// NewWorkflow creates an empty workflow.
func NewWorkflow() *Workflow {
	return &Workflow{
		tasks:         make(map[string]*WorkflowTask),
		fileProducer:  make(map[string]string),
		fileConsumers: make(map[string][]string),
	}
}

// AddTask registers a task with the workflow and records its declared
// file provenance. A task with no parents starts out Ready;
// AddControlDependency later demotes a Ready child to NotReady, and
// MarkTaskCompleted or RemoveTask promotes it once every parent is
// Completed. Declared files feed FileProducer/FileConsumers only and add
// no dependency edge.
func (w *Workflow) AddTask(t *WorkflowTask) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.tasks[t.ID]; exists {
		return fmt.Errorf("datamodel: duplicate task id %q", t.ID)
	}
	w.tasks[t.ID] = t

	for _, f := range t.Outputs {
		w.fileProducer[f.ID] = t.ID
	}
	for _, f := range t.Inputs {
		w.fileConsumers[f.ID] = append(w.fileConsumers[f.ID], t.ID)
	}

	if len(t.parents) == 0 {
		t.State = TaskReady
	}
	return nil
}

// GetTask looks up a task by ID.
func (w *Workflow) GetTask(id string) (*WorkflowTask, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.tasks[id]
	return t, ok
}

// AddControlDependency makes child depend on parent, rejecting the edge
// if it would close a cycle.
func (w *Workflow) AddControlDependency(parentID, childID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	parent, ok := w.tasks[parentID]
	if !ok {
		return fmt.Errorf("datamodel: unknown parent task %q", parentID)
	}
	child, ok := w.tasks[childID]
	if !ok {
		return fmt.Errorf("datamodel: unknown child task %q", childID)
	}
	if parentID == childID {
		return fmt.Errorf("datamodel: task %q cannot depend on itself", parentID)
	}
	if w.reaches(child, parent) {
		return fmt.Errorf("datamodel: adding dependency %q -> %q would create a cycle", parentID, childID)
	}

	parent.children = append(parent.children, child)
	child.parents = append(child.parents, parent)
	if child.State == TaskReady {
		child.State = TaskNotReady
	}
	return nil
}

// reaches reports whether a DFS from start can reach target, used to
// detect a would-be cycle before an edge is committed.
func (w *Workflow) reaches(start, target *WorkflowTask) bool {
	if start == target {
		return true
	}
	visited := make(map[string]bool)
	var dfs func(n *WorkflowTask) bool
	dfs = func(n *WorkflowTask) bool {
		if n == target {
			return true
		}
		if visited[n.ID] {
			return false
		}
		visited[n.ID] = true
		for _, c := range n.children {
			if dfs(c) {
				return true
			}
		}
		return false
	}
	return dfs(start)
}

// RemoveTask deletes a task and all incident edges, then re-evaluates
// its former children for promotion to Ready.
func (w *Workflow) RemoveTask(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	t, ok := w.tasks[id]
	if !ok {
		return fmt.Errorf("datamodel: unknown task %q", id)
	}

	for _, p := range t.parents {
		p.children = removeTask(p.children, t)
	}
	for _, c := range t.children {
		c.parents = removeTask(c.parents, t)
	}
	delete(w.tasks, id)

	for _, c := range t.children {
		w.promoteIfReadyLocked(c)
	}
	return nil
}

func removeTask(list []*WorkflowTask, target *WorkflowTask) []*WorkflowTask {
	out := list[:0]
	for _, t := range list {
		if t != target {
			out = append(out, t)
		}
	}
	return out
}

func (w *Workflow) promoteIfReadyLocked(t *WorkflowTask) {
	if t.State != TaskNotReady {
		return
	}
	for _, p := range t.parents {
		if p.State != TaskCompleted {
			return
		}
	}
	t.State = TaskReady
}

// GetReadyTasks returns every task currently in the Ready state.
func (w *Workflow) GetReadyTasks() []*WorkflowTask {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []*WorkflowTask
	for _, t := range w.tasks {
		if t.State == TaskReady {
			out = append(out, t)
		}
	}
	return out
}

// MarkTaskCompleted transitions a task to Completed and promotes any
// children whose other parents are all already Completed.
func (w *Workflow) MarkTaskCompleted(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.tasks[id]
	if !ok {
		return
	}
	t.State = TaskCompleted
	for _, c := range t.children {
		w.promoteIfReadyLocked(c)
	}
}

// MarkTaskFailed transitions a task to Failed. Failed tasks never
// promote their children — a workflow with a failed task is expected to
// be reported as failed overall by its caller.
func (w *Workflow) MarkTaskFailed(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.tasks[id]; ok {
		t.State = TaskFailed
	}
}

// IsDone reports whether every task in the workflow has reached a
// terminal state (Completed or Failed).
func (w *Workflow) IsDone() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, t := range w.tasks {
		if t.State != TaskCompleted && t.State != TaskFailed {
			return false
		}
	}
	return true
}

// Tasks returns a snapshot of every task in the workflow.
func (w *Workflow) Tasks() []*WorkflowTask {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*WorkflowTask, 0, len(w.tasks))
	for _, t := range w.tasks {
		out = append(out, t)
	}
	return out
}

// FileProducer returns the task ID that produces fileID, if any.
func (w *Workflow) FileProducer(fileID string) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	id, ok := w.fileProducer[fileID]
	return id, ok
}

// FileConsumers returns the task IDs that declared fileID as an input.
func (w *Workflow) FileConsumers(fileID string) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.fileConsumers[fileID]...)
}
