// Package compute implements the bare-metal compute service: admission
// control, best-fit host scheduling, and per-action execution. The
// scheduler is not a separate actor — it is a plain value driving the
// dispatch loop on the compute service's own goroutine, handing off each
// action's actual work to a short-lived ActionExecutor actor pinned to
// the host it was scheduled on.
package compute

import (
	"github.com/wrenchsim/wrench/pkg/action"
	"github.com/wrenchsim/wrench/pkg/failure"
)

// SubmitCompoundJobRequest asks the service to admit and run job.
type SubmitCompoundJobRequest struct {
	Job       *action.CompoundJob
	Args      map[string]string
	ReplyMbox string
}

// Ack is the service's affirmative admission reply.
type Ack struct{ JobID string }

// AdmissionRejected is the service's negative admission reply.
type AdmissionRejected struct {
	JobID string
	Cause failure.Cause
}

// CompoundJobDone is sent to the job's reply mailbox once every action
// reached a terminal state and the job rolled up to Completed.
type CompoundJobDone struct{ JobID string }

// CompoundJobFailed is sent when the job rolled up to Discontinued.
type CompoundJobFailed struct {
	JobID string
	Cause failure.Cause
}

// actionDone/actionFailed are the service's own internal completion
// messages, sent by an ActionExecutor back to the service's mailbox.
type actionDone struct {
	jobID, actionID string
	hostID          string
	cores           int
	ram             int64
}

type actionFailed struct {
	jobID, actionID string
	hostID          string
	cores           int
	ram             int64
	cause           failure.Cause
}

// actionCrashed is sent when a host died mid-action.
type actionCrashed struct {
	jobID, actionID string
	hostID          string
	cores           int
	ram             int64
}
