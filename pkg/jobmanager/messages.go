// Package jobmanager implements the actor that mediates between a
// workflow-driving controller and the compute services actually running
// jobs: it tracks submission order, applies WorkflowTask state deltas for
// legacy StandardJob submissions, and forwards exactly one terminal event
// per job to its originator.
package jobmanager

import (
	"github.com/wrenchsim/wrench/pkg/action"
	"github.com/wrenchsim/wrench/pkg/compute"
	"github.com/wrenchsim/wrench/pkg/failure"
)

// CreateCompoundJob asks the manager to track a freshly built job before
// it is submitted. Client code builds the CompoundJob on its own
// goroutine and sends this message to the manager's mailbox; CompoundJob
// construction itself never touches the manager's state.
type CreateCompoundJob struct {
	Job *action.CompoundJob
}

// SubmitJob asks the manager to dispatch Job to Service once every
// inter-job parent of Job has completed. Args are forwarded verbatim as
// service_specific_args.
type SubmitJob struct {
	Job         *action.CompoundJob
	ServiceID   string
	ServiceMbox string
	Args        map[string]string
	ReplyMbox   string
}

// TerminateJob asks the manager to stop tracking and forward termination
// for Job, which must already be dispatched to a service.
type TerminateJob struct {
	JobID string
}

// Shutdown asks the manager to fail every still-pending job with
// JobManagerTerminated and stop.
type Shutdown struct{}

// SubmitCompoundJobRequest is what the manager actually sends to a
// compute service's mailbox to dispatch a job. Aliased to compute's own
// type rather than redeclared, so a type switch on either side of the
// mailbox sees the same concrete type regardless of which package
// constructed the value.
type SubmitCompoundJobRequest = compute.SubmitCompoundJobRequest

// Ack is the compute service's affirmative admission-control reply.
type Ack = compute.Ack

// AdmissionRejected is the compute service's negative admission-control
// reply.
type AdmissionRejected = compute.AdmissionRejected

// CompoundJobDone is sent by a compute service when every action in a
// job has reached a terminal state and the job completed successfully.
type CompoundJobDone = compute.CompoundJobDone

// CompoundJobFailed is sent by a compute service when a job finished in
// the Discontinued state.
type CompoundJobFailed = compute.CompoundJobFailed

// Outbound events the manager forwards to a job's originator mailbox.

type StandardJobCompleted struct{ JobID string }
type StandardJobFailed struct {
	JobID string
	Cause failure.Cause
}
type CompoundJobCompleted struct{ JobID string }
type CompoundJobFailedEvent struct {
	JobID string
	Cause failure.Cause
}
