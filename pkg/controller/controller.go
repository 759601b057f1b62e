package controller

import (
	"context"
	"time"

	"github.com/wrenchsim/wrench/internal/simcore"
	"github.com/wrenchsim/wrench/pkg/action"
	"github.com/wrenchsim/wrench/pkg/failure"
	"github.com/wrenchsim/wrench/pkg/jobmanager"
	"github.com/wrenchsim/wrench/pkg/storage"
)

// ExecutionController is the interface a WMS driver implements against
// this module: submit jobs, then drain events off its own mailbox one at
// a time. This package provides Controller as a ready-made implementation
// so example drivers (cmd/wrenchctl) don't need to hand-roll the
// demultiplexing switch themselves.
type ExecutionController interface {
	Submit(ctx context.Context, job *action.CompoundJob, serviceMbox string, args map[string]string) error
	WaitForNextEvent(ctx context.Context, timeout time.Duration) (Event, error)
}

// Controller is the straightforward ExecutionController implementation:
// it owns a mailbox, submits jobs through a jobmanager.JobManager, and
// demultiplexes whatever lands on its mailbox into typed Events.
type Controller struct {
	sim   *simcore.Simulation
	mbox  *simcore.Mailbox
	clock *simcore.Clock
	jm    *jobmanager.JobManager
}

// New creates a Controller with its own mailbox named mailboxName,
// submitting jobs through jm.
func New(sim *simcore.Simulation, jm *jobmanager.JobManager, mailboxName string) *Controller {
	return &Controller{
		sim:   sim,
		mbox:  sim.Mailboxes().Get(mailboxName),
		clock: sim.Clock(),
		jm:    jm,
	}
}

// Mailbox returns the controller's own mailbox, the address completion
// events and replies are delivered to.
func (c *Controller) Mailbox() *simcore.Mailbox { return c.mbox }

// Submit asks the JobManager to dispatch job to the compute service at
// serviceMbox, with this controller's mailbox as both the job's reply
// mailbox and submission originator.
func (c *Controller) Submit(ctx context.Context, job *action.CompoundJob, serviceMbox string, args map[string]string) error {
	return c.jm.Mailbox().Put(ctx, jobmanager.SubmitJob{
		Job:         job,
		ServiceMbox: serviceMbox,
		Args:        args,
		ReplyMbox:   c.mbox.Name(),
	})
}

// WaitForNextEvent blocks on the controller's mailbox for up to timeout
// (0 means wait forever, bounded only by ctx), demultiplexing whatever
// arrives into a typed Event. A plain receive timeout yields the zero
// Event (EventNone), nil — not an error, since polling for "nothing yet"
// is an expected outcome. Any other mailbox error surfaces as
// *ExecutionException wrapping failure.NetworkError.
func (c *Controller) WaitForNextEvent(ctx context.Context, timeout time.Duration) (Event, error) {
	msg, err := c.mbox.Get(ctx, c.clock, timeout)
	if err != nil {
		if err == simcore.ErrNetworkTimeout {
			return Event{Kind: EventNone}, nil
		}
		return Event{}, &ExecutionException{Cause: &failure.NetworkError{}}
	}
	return demux(msg), nil
}

func demux(msg any) Event {
	switch m := msg.(type) {
	case jobmanager.StandardJobCompleted:
		return Event{Kind: StandardJobCompleted, JobID: m.JobID}
	case jobmanager.StandardJobFailed:
		return Event{Kind: StandardJobFailed, JobID: m.JobID, Cause: m.Cause}
	case jobmanager.CompoundJobCompleted:
		return Event{Kind: CompoundJobCompleted, JobID: m.JobID}
	case jobmanager.CompoundJobFailedEvent:
		return Event{Kind: CompoundJobFailed, JobID: m.JobID, Cause: m.Cause}
	case jobmanager.PilotJobStarted:
		return Event{Kind: PilotJobStarted, PilotJobID: m.PilotID}
	case jobmanager.PilotJobExpired:
		return Event{Kind: PilotJobExpired, PilotJobID: m.PilotID, Cause: &failure.JobTimeout{JobID: m.PilotID}}
	case storage.CopyCompleted:
		if m.Success {
			return Event{Kind: FileCopyCompleted, CopySrc: m.Src.Path, CopyDst: m.Dst.Path}
		}
		return Event{Kind: FileCopyFailed, Cause: m.Cause, CopySrc: m.Src.Path, CopyDst: m.Dst.Path}
	default:
		return Event{Kind: Timer}
	}
}
