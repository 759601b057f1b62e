package action

import (
	"fmt"
	"sync"
	"time"

	"github.com/wrenchsim/wrench/pkg/datamodel"
	"github.com/wrenchsim/wrench/pkg/failure"
)

// JobState is a CompoundJob's lifecycle stage.
type JobState int

const (
	NotSubmitted JobState = iota
	Submitted
	JobCompleted
	Discontinued
)

func (s JobState) String() string {
	switch s {
	case NotSubmitted:
		return "NOT_SUBMITTED"
	case Submitted:
		return "SUBMITTED"
	case JobCompleted:
		return "COMPLETED"
	case Discontinued:
		return "DISCONTINUED"
	default:
		return "UNKNOWN"
	}
}

// CompoundJob is a DAG of Actions plus a second, coarser DAG of
// inter-job dependencies (parentJobs/childJobs). Every mutation of the
// action maps is guarded by mu: dispatch normally happens single-writer
// on the owning ActionScheduler's goroutine, but observer code and
// external status reads may run concurrently.
type CompoundJob struct {
	ID   string
	Name string

	mu      sync.Mutex
	actions map[string]*Action
	byState map[State]map[string]*Action

	parentJobs map[string]*CompoundJob
	childJobs  map[string]*CompoundJob

	State JobState
}

// NewCompoundJob creates an empty, NotSubmitted job.
func NewCompoundJob(id, name string) *CompoundJob {
	j := &CompoundJob{
		ID:         id,
		Name:       name,
		actions:    make(map[string]*Action),
		byState:    make(map[State]map[string]*Action),
		parentJobs: make(map[string]*CompoundJob),
		childJobs:  make(map[string]*CompoundJob),
		State:      NotSubmitted,
	}
	for s := NotReady; s <= Failed; s++ {
		j.byState[s] = make(map[string]*Action)
	}
	return j
}

func (j *CompoundJob) indexLocked(a *Action) {
	j.byState[a.State][a.ID] = a
}

func (j *CompoundJob) reindexLocked(a *Action, from State) {
	delete(j.byState[from], a.ID)
	j.byState[a.State][a.ID] = a
}

func (j *CompoundJob) addAction(a *Action) (*Action, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, exists := j.actions[a.ID]; exists {
		return nil, fmt.Errorf("action: duplicate action id %q in job %q", a.ID, j.ID)
	}
	if len(a.Parents) == 0 {
		a.State = Ready
	}
	j.actions[a.ID] = a
	j.indexLocked(a)
	return a, nil
}

// AddSleepAction adds a Sleep action to the job.
func (j *CompoundJob) AddSleepAction(id, name string, d time.Duration) (*Action, error) {
	return j.addAction(newAction(id, name, Sleep, 1, 1, 0, SleepSpec{Duration: d}))
}

// AddComputeAction adds a Compute action to the job.
func (j *CompoundJob) AddComputeAction(id, name string, flops float64, minCores, maxCores int, minRAM int64, model datamodel.ParallelModel) (*Action, error) {
	return j.addAction(newAction(id, name, Compute, minCores, maxCores, minRAM, ComputeSpec{Flops: flops, Model: model}))
}

// AddFileReadAction adds a FileRead action to the job.
func (j *CompoundJob) AddFileReadAction(id, name string, loc *datamodel.FileLocation, numBytes int64) (*Action, error) {
	return j.addAction(newAction(id, name, FileRead, 1, 1, 0, FileReadSpec{Location: loc, NumBytes: numBytes}))
}

// AddFileReadActionViaResolver adds a FileRead action whose source
// location is looked up through resolver (e.g. an XRootD federation
// entry point) when the action actually runs, instead of being fixed at
// submission time.
func (j *CompoundJob) AddFileReadActionViaResolver(id, name string, file *datamodel.DataFile, resolver LocationResolver, numBytes int64) (*Action, error) {
	return j.addAction(newAction(id, name, FileRead, 1, 1, 0, FileReadSpec{File: file, Resolver: resolver, NumBytes: numBytes}))
}

// AddFileWriteAction adds a FileWrite action to the job.
func (j *CompoundJob) AddFileWriteAction(id, name string, loc *datamodel.FileLocation, numBytes int64) (*Action, error) {
	return j.addAction(newAction(id, name, FileWrite, 1, 1, 0, FileWriteSpec{Location: loc, NumBytes: numBytes}))
}

// AddFileCopyAction adds a FileCopy action to the job.
func (j *CompoundJob) AddFileCopyAction(id, name string, src, dst *datamodel.FileLocation) (*Action, error) {
	return j.addAction(newAction(id, name, FileCopy, 1, 1, 0, FileCopySpec{Src: src, Dst: dst}))
}

// AddFileDeleteAction adds a FileDelete action to the job.
func (j *CompoundJob) AddFileDeleteAction(id, name string, loc *datamodel.FileLocation) (*Action, error) {
	return j.addAction(newAction(id, name, FileDelete, 1, 1, 0, FileDeleteSpec{Location: loc}))
}

// AddFileRegistryAddAction adds a FileRegistryAdd action to the job.
func (j *CompoundJob) AddFileRegistryAddAction(id, name string, f *datamodel.DataFile, loc *datamodel.FileLocation) (*Action, error) {
	return j.addAction(newAction(id, name, FileRegistryAdd, 1, 1, 0, FileRegistrySpec{File: f, Location: loc}))
}

// AddFileRegistryDeleteAction adds a FileRegistryDelete action to the job.
func (j *CompoundJob) AddFileRegistryDeleteAction(id, name string, f *datamodel.DataFile, loc *datamodel.FileLocation) (*Action, error) {
	return j.addAction(newAction(id, name, FileRegistryDelete, 1, 1, 0, FileRegistrySpec{File: f, Location: loc}))
}

// AddCustomAction adds a Custom action that invokes fn once (rank 0) on
// the minCores..maxCores cores reserved for it.
func (j *CompoundJob) AddCustomAction(id, name string, fn CustomFunc, minCores, maxCores int, minRAM int64) (*Action, error) {
	return j.addAction(newAction(id, name, Custom, minCores, maxCores, minRAM, CustomSpec{Fn: fn}))
}

// AddMPIAction adds an MPI action running fn concurrently across
// numRanks goroutines, joined before the action completes.
func (j *CompoundJob) AddMPIAction(id, name string, fn CustomFunc, numRanks, minCores, maxCores int, minRAM int64) (*Action, error) {
	return j.addAction(newAction(id, name, MPI, minCores, maxCores, minRAM, MPISpec{Fn: fn, NumRanks: numRanks}))
}

// RemoveAction deletes an action and its incident edges.
func (j *CompoundJob) RemoveAction(id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	a, ok := j.actions[id]
	if !ok {
		return fmt.Errorf("action: unknown action %q in job %q", id, j.ID)
	}
	for _, p := range a.Parents {
		p.Children = removeAction(p.Children, a)
	}
	for _, c := range a.Children {
		c.Parents = removeAction(c.Parents, a)
	}
	delete(j.actions, id)
	delete(j.byState[a.State], id)
	return nil
}

func removeAction(list []*Action, target *Action) []*Action {
	out := list[:0]
	for _, a := range list {
		if a != target {
			out = append(out, a)
		}
	}
	return out
}

// AddActionDependency makes child depend on parent within this job,
// rejecting the edge if it would create a cycle. Only valid while the
// job is NotSubmitted.
func (j *CompoundJob) AddActionDependency(parentID, childID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.State != NotSubmitted {
		return fmt.Errorf("action: cannot add dependency to job %q in state %s", j.ID, j.State)
	}
	parent, ok := j.actions[parentID]
	if !ok {
		return fmt.Errorf("action: unknown parent action %q", parentID)
	}
	child, ok := j.actions[childID]
	if !ok {
		return fmt.Errorf("action: unknown child action %q", childID)
	}
	if reachesAction(child, parent) {
		return fmt.Errorf("action: adding dependency %q -> %q would create a cycle", parentID, childID)
	}

	parent.Children = append(parent.Children, child)
	child.Parents = append(child.Parents, parent)
	if child.State == Ready {
		child.State = NotReady
		j.reindexLocked(child, Ready)
	}
	return nil
}

func reachesAction(start, target *Action) bool {
	if start == target {
		return true
	}
	visited := make(map[string]bool)
	var dfs func(n *Action) bool
	dfs = func(n *Action) bool {
		if n == target {
			return true
		}
		if visited[n.ID] {
			return false
		}
		visited[n.ID] = true
		for _, c := range n.Children {
			if dfs(c) {
				return true
			}
		}
		return false
	}
	return dfs(start)
}

// AddParentJob/AddChildJob wire the coarser, inter-job DAG, cycle-checked
// independently of the intra-job action DAG.
func (j *CompoundJob) AddParentJob(parent *CompoundJob) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.reachesJobLocked(parent, j) {
		return fmt.Errorf("action: job dependency %q -> %q would create a cycle", parent.ID, j.ID)
	}
	j.parentJobs[parent.ID] = parent
	parent.mu.Lock()
	parent.childJobs[j.ID] = j
	parent.mu.Unlock()
	return nil
}

// AddChildJob makes child depend on j; it is AddParentJob seen from the
// parent's side.
func (j *CompoundJob) AddChildJob(child *CompoundJob) error {
	return child.AddParentJob(j)
}

func (j *CompoundJob) reachesJobLocked(start, target *CompoundJob) bool {
	if start == target {
		return true
	}
	visited := make(map[string]bool)
	var dfs func(n *CompoundJob) bool
	dfs = func(n *CompoundJob) bool {
		if n == target {
			return true
		}
		if visited[n.ID] {
			return false
		}
		visited[n.ID] = true
		n.mu.Lock()
		children := make([]*CompoundJob, 0, len(n.childJobs))
		for _, c := range n.childJobs {
			children = append(children, c)
		}
		n.mu.Unlock()
		for _, c := range children {
			if dfs(c) {
				return true
			}
		}
		return false
	}
	return dfs(start)
}

// ParentJobs returns a snapshot of this job's inter-job parents.
func (j *CompoundJob) ParentJobs() []*CompoundJob {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*CompoundJob, 0, len(j.parentJobs))
	for _, p := range j.parentJobs {
		out = append(out, p)
	}
	return out
}

// AllParentJobsCompleted reports whether every inter-job parent has
// reached JobCompleted — the gate JobManager uses before dispatching
// this job to a service.
func (j *CompoundJob) AllParentJobsCompleted() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, p := range j.parentJobs {
		p.mu.Lock()
		state := p.State
		p.mu.Unlock()
		if state != JobCompleted {
			return false
		}
	}
	return true
}

// Actions returns a snapshot of every action in the job.
func (j *CompoundJob) Actions() []*Action {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*Action, 0, len(j.actions))
	for _, a := range j.actions {
		out = append(out, a)
	}
	return out
}

// ReadyActions returns every action currently in the Ready state.
func (j *CompoundJob) ReadyActions() []*Action {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*Action, 0, len(j.byState[Ready]))
	for _, a := range j.byState[Ready] {
		out = append(out, a)
	}
	return out
}

// MarkStarted transitions an action to Started, stamping StartedAt.
func (j *CompoundJob) MarkStarted(id string, at time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	a, ok := j.actions[id]
	if !ok {
		return
	}
	j.reindexLocked(a, a.State)
	a.State = Started
	j.byState[Started][id] = a
	delete(j.byState[NotReady], id)
	delete(j.byState[Ready], id)
	t := at
	a.StartedAt = &t
}

// MarkCompleted transitions an action to Completed and re-evaluates
// every child for promotion to Ready.
func (j *CompoundJob) MarkCompleted(id string, at time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	a, ok := j.actions[id]
	if !ok {
		return
	}
	from := a.State
	a.State = Completed
	t := at
	a.EndedAt = &t
	j.reindexLocked(a, from)

	for _, c := range a.Children {
		j.promoteIfReadyLocked(c)
	}
}

// MarkFailed transitions an action to Failed with cause, and propagates
// ParentActionFailed to every descendant that can never run now.
func (j *CompoundJob) MarkFailed(id string, at time.Time, cause failure.Cause) {
	j.mu.Lock()
	defer j.mu.Unlock()
	a, ok := j.actions[id]
	if !ok {
		return
	}
	from := a.State
	a.State = Failed
	a.FailureCause = cause
	t := at
	a.EndedAt = &t
	j.reindexLocked(a, from)

	j.failDescendantsLocked(a)
}

// MarkKilled transitions an action to Killed, leaving EndedAt unset:
// a killed action's compute never reached an end_date, distinct from a
// Failed action which did run to a definite stopping point.
func (j *CompoundJob) MarkKilled(id string, at time.Time, cause failure.Cause) {
	j.mu.Lock()
	defer j.mu.Unlock()
	a, ok := j.actions[id]
	if !ok {
		return
	}
	from := a.State
	a.State = Killed
	a.FailureCause = cause
	j.reindexLocked(a, from)

	j.failDescendantsLocked(a)
}

func (j *CompoundJob) failDescendantsLocked(a *Action) {
	for _, c := range a.Children {
		if c.State == Completed || c.State == Failed || c.State == Killed {
			continue
		}
		from := c.State
		c.State = Failed
		c.FailureCause = &failure.ParentActionFailed{ActionID: c.ID, ParentID: a.ID}
		j.reindexLocked(c, from)
		j.failDescendantsLocked(c)
	}
}

// ResetToReady puts a Started action back into Ready, discarding its
// StartedAt stamp. Used when an executor crashes mid-run and the
// service is configured to retry the action rather than fail it.
func (j *CompoundJob) ResetToReady(id string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	a, ok := j.actions[id]
	if !ok {
		return
	}
	from := a.State
	a.State = Ready
	a.StartedAt = nil
	j.reindexLocked(a, from)
}

func (j *CompoundJob) promoteIfReadyLocked(a *Action) {
	if a.State != NotReady {
		return
	}
	for _, p := range a.Parents {
		if p.State != Completed {
			return
		}
	}
	from := a.State
	a.State = Ready
	j.reindexLocked(a, from)
}

// IsTerminal reports whether every action has reached a terminal state.
func (j *CompoundJob) IsTerminal() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	terminal := len(j.byState[Completed]) + len(j.byState[Failed]) + len(j.byState[Killed])
	return terminal == len(j.actions)
}

// Rollup computes the job's terminal State once every action has
// reached a terminal state: Completed if every action Completed, else
// Discontinued with the failure cause of the first non-Completed
// action found (map iteration order is not meaningful here — "first"
// means "some", which is what the job-level summary cause is for).
func (j *CompoundJob) Rollup() (JobState, failure.Cause) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.byState[Completed]) == len(j.actions) {
		j.State = JobCompleted
		return JobCompleted, nil
	}
	j.State = Discontinued
	for _, a := range j.actions {
		if a.State != Completed {
			return Discontinued, a.FailureCause
		}
	}
	return Discontinued, &failure.FatalFailure{Message: "job discontinued with no failed action found"}
}
