package datamodel

import "fmt"

// TaskState is the lifecycle of a WorkflowTask within its owning Workflow.
type TaskState int

const (
	TaskNotReady TaskState = iota
	TaskReady
	TaskPending
	TaskRunning
	TaskCompleted
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskNotReady:
		return "NOT_READY"
	case TaskReady:
		return "READY"
	case TaskPending:
		return "PENDING"
	case TaskRunning:
		return "RUNNING"
	case TaskCompleted:
		return "COMPLETED"
	case TaskFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// WorkflowTask is one node of a Workflow DAG: a unit of compute with
// declared input/output files and a resource envelope.
type WorkflowTask struct {
	ID       string
	Flops    float64
	MinCores int
	MaxCores int
	RAM      int64
	Model    ParallelModel
	Inputs   []*DataFile
	Outputs  []*DataFile
	State    TaskState

	parents  []*WorkflowTask
	children []*WorkflowTask
}

// NewWorkflowTask constructs a task, enforcing MinCores <= MaxCores.
func NewWorkflowTask(id string, flops float64, minCores, maxCores int, ram int64, model ParallelModel) (*WorkflowTask, error) {
	if minCores < 1 {
		minCores = 1
	}
	if maxCores < minCores {
		return nil, fmt.Errorf("datamodel: task %q has MaxCores %d < MinCores %d", id, maxCores, minCores)
	}
	return &WorkflowTask{
		ID:       id,
		Flops:    flops,
		MinCores: minCores,
		MaxCores: maxCores,
		RAM:      ram,
		Model:    model,
		State:    TaskNotReady,
	}, nil
}

// Parents returns the task's direct predecessors.
func (t *WorkflowTask) Parents() []*WorkflowTask { return t.parents }

// Children returns the task's direct successors.
func (t *WorkflowTask) Children() []*WorkflowTask { return t.children }

// AddInput declares f as an input file, consumed before this task runs.
func (t *WorkflowTask) AddInput(f *DataFile) { t.Inputs = append(t.Inputs, f) }

// AddOutput declares f as a file produced by this task upon completion.
func (t *WorkflowTask) AddOutput(f *DataFile) { t.Outputs = append(t.Outputs, f) }
