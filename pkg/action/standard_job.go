package action

import (
	"fmt"
	"time"

	"github.com/wrenchsim/wrench/pkg/datamodel"
)

// StandardJobSpec describes the pre/post file movement and cleanup a
// StandardJob wraps around a single WorkflowTask's compute.
type StandardJobSpec struct {
	Task *datamodel.WorkflowTask

	// PreOverhead is charged (as a Sleep action) before any file reads,
	// modelling job-submission/start latency.
	PreOverhead time.Duration

	// InputLocations maps each of Task.Inputs (by index) to the
	// location it should be read from.
	InputLocations []*datamodel.FileLocation

	// OutputLocations maps each of Task.Outputs (by index) to the
	// location it should be written to.
	OutputLocations []*datamodel.FileLocation

	// PostCopies run after the compute and output writes, e.g. staging
	// a result out to long-term storage.
	PostCopies []FileCopySpec

	// CleanupDeletes run after post-copies, e.g. removing staged
	// inputs no longer needed.
	CleanupDeletes []*datamodel.FileLocation

	// ScratchCleanup is deleted last, after everything else, if the
	// task used scratch space for intermediate files.
	ScratchCleanup []*datamodel.FileLocation
}

// NewStandardJob lowers spec into a CompoundJob: pre-overhead Sleep ->
// per-input FileRead -> Compute -> per-output FileWrite -> post-copies
// -> cleanup FileDeletes -> scratch-cleanup FileDelete, wired in that
// order via AddActionDependency so the legacy StandardJob API gets
// exactly the same dispatch machinery as a hand-built CompoundJob.
func NewStandardJob(id string, spec StandardJobSpec) (*CompoundJob, error) {
	if len(spec.InputLocations) != len(spec.Task.Inputs) {
		return nil, fmt.Errorf("action: standard job %q has %d input locations for %d declared inputs", id, len(spec.InputLocations), len(spec.Task.Inputs))
	}
	if len(spec.OutputLocations) != len(spec.Task.Outputs) {
		return nil, fmt.Errorf("action: standard job %q has %d output locations for %d declared outputs", id, len(spec.OutputLocations), len(spec.Task.Outputs))
	}

	job := NewCompoundJob(id, "standard-"+spec.Task.ID)
	var chainTail []*Action

	if spec.PreOverhead > 0 {
		pre, err := job.AddSleepAction(id+"-pre", "pre-overhead", spec.PreOverhead)
		if err != nil {
			return nil, err
		}
		chainTail = []*Action{pre}
	}

	var readActions []*Action
	for i, f := range spec.Task.Inputs {
		loc := spec.InputLocations[i]
		a, err := job.AddFileReadAction(fmt.Sprintf("%s-read-%s", id, f.ID), "read-"+f.ID, loc, f.SizeBytes)
		if err != nil {
			return nil, err
		}
		if err := chainAfter(job, chainTail, a); err != nil {
			return nil, err
		}
		readActions = append(readActions, a)
	}

	compute, err := job.AddComputeAction(id+"-compute", "compute-"+spec.Task.ID, spec.Task.Flops, spec.Task.MinCores, spec.Task.MaxCores, spec.Task.RAM, spec.Task.Model)
	if err != nil {
		return nil, err
	}
	tail := chainTail
	if len(readActions) > 0 {
		tail = readActions
	}
	if err := chainAfter(job, tail, compute); err != nil {
		return nil, err
	}

	var writeActions []*Action
	for i, f := range spec.Task.Outputs {
		loc := spec.OutputLocations[i]
		a, err := job.AddFileWriteAction(fmt.Sprintf("%s-write-%s", id, f.ID), "write-"+f.ID, loc, f.SizeBytes)
		if err != nil {
			return nil, err
		}
		if err := job.AddActionDependency(compute.ID, a.ID); err != nil {
			return nil, err
		}
		writeActions = append(writeActions, a)
	}

	lastWriteLike := writeActions
	if len(lastWriteLike) == 0 {
		lastWriteLike = []*Action{compute}
	}

	for i, copySpec := range spec.PostCopies {
		a, err := job.AddFileCopyAction(fmt.Sprintf("%s-postcopy-%d", id, i), fmt.Sprintf("post-copy-%d", i), copySpec.Src, copySpec.Dst)
		if err != nil {
			return nil, err
		}
		if err := chainAfter(job, lastWriteLike, a); err != nil {
			return nil, err
		}
		lastWriteLike = []*Action{a}
	}

	for i, loc := range spec.CleanupDeletes {
		a, err := job.AddFileDeleteAction(fmt.Sprintf("%s-cleanup-%d", id, i), fmt.Sprintf("cleanup-%d", i), loc)
		if err != nil {
			return nil, err
		}
		if err := chainAfter(job, lastWriteLike, a); err != nil {
			return nil, err
		}
		lastWriteLike = []*Action{a}
	}

	for i, loc := range spec.ScratchCleanup {
		a, err := job.AddFileDeleteAction(fmt.Sprintf("%s-scratch-cleanup-%d", id, i), fmt.Sprintf("scratch-cleanup-%d", i), loc)
		if err != nil {
			return nil, err
		}
		if err := chainAfter(job, lastWriteLike, a); err != nil {
			return nil, err
		}
		lastWriteLike = []*Action{a}
	}

	return job, nil
}

func chainAfter(job *CompoundJob, parents []*Action, child *Action) error {
	for _, p := range parents {
		if err := job.AddActionDependency(p.ID, child.ID); err != nil {
			return err
		}
	}
	return nil
}
