// Package action implements WRENCH's action and compound-job model: the
// fine-grained unit of simulated work (Action) and the DAG of actions and
// inter-job dependencies a compute service actually schedules
// (CompoundJob). StandardJob lowers a higher-level workflow task into the
// same representation so one dispatch path serves both APIs.
package action

import (
	"context"
	"time"

	"github.com/wrenchsim/wrench/pkg/datamodel"
	"github.com/wrenchsim/wrench/pkg/failure"
)

// Kind identifies what an Action's Spec payload actually describes.
type Kind int

const (
	Sleep Kind = iota
	Compute
	FileRead
	FileWrite
	FileCopy
	FileDelete
	FileRegistryAdd
	FileRegistryDelete
	Custom
	MPI
)

func (k Kind) String() string {
	switch k {
	case Sleep:
		return "SLEEP"
	case Compute:
		return "COMPUTE"
	case FileRead:
		return "FILE_READ"
	case FileWrite:
		return "FILE_WRITE"
	case FileCopy:
		return "FILE_COPY"
	case FileDelete:
		return "FILE_DELETE"
	case FileRegistryAdd:
		return "FILE_REGISTRY_ADD"
	case FileRegistryDelete:
		return "FILE_REGISTRY_DELETE"
	case Custom:
		return "CUSTOM"
	case MPI:
		return "MPI"
	default:
		return "UNKNOWN"
	}
}

// State is an Action's lifecycle stage.
type State int

const (
	NotReady State = iota
	Ready
	Started
	Completed
	Killed
	Failed
)

func (s State) String() string {
	switch s {
	case NotReady:
		return "NOT_READY"
	case Ready:
		return "READY"
	case Started:
		return "STARTED"
	case Completed:
		return "COMPLETED"
	case Killed:
		return "KILLED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ComputeSpec is the Spec payload for a Compute action.
type ComputeSpec struct {
	Flops float64
	Model datamodel.ParallelModel
}

// LocationResolver resolves a file to a concrete FileLocation at
// execution time rather than submission time, hiding a storage overlay's
// placement decision (e.g. the XRootD broadcast-search protocol) behind
// the FileRead action's interface. xrootd.EntryReader satisfies this
// interface structurally, so this package never imports pkg/xrootd.
type LocationResolver interface {
	Resolve(ctx context.Context, file *datamodel.DataFile) (*datamodel.FileLocation, error)
}

// FileReadSpec is the Spec payload for a FileRead action. Exactly one of
// Location or (File, Resolver) is set: a plain read names its location
// directly, while a resolver-backed read only knows which file it wants
// and defers where to find it until the action actually runs.
type FileReadSpec struct {
	Location *datamodel.FileLocation
	NumBytes int64

	File     *datamodel.DataFile
	Resolver LocationResolver
}

// FileWriteSpec is the Spec payload for a FileWrite action.
type FileWriteSpec struct {
	Location *datamodel.FileLocation
	NumBytes int64
}

// FileCopySpec is the Spec payload for a FileCopy action.
type FileCopySpec struct {
	Src, Dst *datamodel.FileLocation
}

// FileDeleteSpec is the Spec payload for a FileDelete action.
type FileDeleteSpec struct {
	Location *datamodel.FileLocation
}

// FileRegistrySpec is the Spec payload shared by FileRegistryAdd/Delete.
type FileRegistrySpec struct {
	File     *datamodel.DataFile
	Location *datamodel.FileLocation
}

// SleepSpec is the Spec payload for a Sleep action.
type SleepSpec struct {
	Duration time.Duration
}

// CustomFunc is the signature a Custom or MPI action's user code must
// implement. ctx identifies the host the action runs on and carries no
// cancellation signal; rank is always 0 for Custom and the 0-based rank
// index for each concurrent MPI invocation.
type CustomFunc func(ctx ActionExecutionContext, rank int) error

// ActionExecutionContext is the minimal handle a CustomFunc receives —
// defined here (rather than imported from pkg/compute) to avoid a
// dependency cycle between the action and compute packages.
type ActionExecutionContext interface {
	HostID() string
}

// CustomSpec is the Spec payload for a Custom action.
type CustomSpec struct {
	Fn CustomFunc
}

// MPISpec is the Spec payload for an MPI action: NumRanks concurrent
// invocations of Fn, joined before the action completes.
type MPISpec struct {
	Fn       CustomFunc
	NumRanks int
}

// Action is one node of a CompoundJob's intra-job DAG.
type Action struct {
	ID       string
	Name     string
	Kind     Kind
	Parents  []*Action
	Children []*Action

	State        State
	FailureCause failure.Cause
	StartedAt    *time.Time
	EndedAt      *time.Time

	MinCores int
	MaxCores int
	MinRAM   int64

	Spec any
}

// newAction builds the shared header for a new action, defaulting
// MaxCores to MinCores when unset so a caller that only cares about one
// core doesn't have to specify both.
func newAction(id, name string, kind Kind, minCores, maxCores int, minRAM int64, spec any) *Action {
	if minCores < 1 {
		minCores = 1
	}
	if maxCores < minCores {
		maxCores = minCores
	}
	return &Action{
		ID:       id,
		Name:     name,
		Kind:     kind,
		State:    NotReady,
		MinCores: minCores,
		MaxCores: maxCores,
		MinRAM:   minRAM,
		Spec:     spec,
	}
}
