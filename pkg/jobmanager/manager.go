package jobmanager

import (
	"context"
	"time"

	"github.com/wrenchsim/wrench/internal/otelspan"
	"github.com/wrenchsim/wrench/internal/simcore"
	"github.com/wrenchsim/wrench/internal/wlog"
	"github.com/wrenchsim/wrench/pkg/action"
	"github.com/wrenchsim/wrench/pkg/datamodel"
	"github.com/wrenchsim/wrench/pkg/failure"
)

// tickInterval bounds how long the manager's main loop waits for a
// control message before re-scanning pending jobs for newly satisfied
// inter-job dependencies. Mirrors a wave-executor's per-iteration poll,
// generalized from "next wave" to "next dispatchable job".
const tickInterval = 10 * time.Millisecond

type entry struct {
	job         *action.CompoundJob
	serviceID   string
	serviceMbox string
	args        map[string]string
	replyMbox   string

	// task/workflow are set only for jobs created through
	// CreateStandardJob, so their WorkflowTask state can be kept in
	// sync with the job's terminal outcome.
	task     *datamodel.WorkflowTask
	workflow *datamodel.Workflow

	endSpan func()
}

// JobManager is a simcore.Actor mediating job submission between a
// controller and one or more compute services.
type JobManager struct {
	sim   *simcore.Simulation
	host  *simcore.Host
	mbox  *simcore.Mailbox
	clock *simcore.Clock
	log   wlog.Logger

	pending    map[string]*entry
	dispatched map[string]*entry
	pilots     map[string]*pilotEntry
}

// New creates a JobManager bound to mailbox name and spawns its actor
// goroutine on host.
func New(sim *simcore.Simulation, host *simcore.Host, mailboxName string, log wlog.Logger) *JobManager {
	jm := &JobManager{
		sim:        sim,
		host:       host,
		mbox:       sim.Mailboxes().Get(mailboxName),
		clock:      sim.Clock(),
		log:        log.With("component", "jobmanager"),
		pending:    make(map[string]*entry),
		dispatched: make(map[string]*entry),
		pilots:     make(map[string]*pilotEntry),
	}
	sim.Spawn(host, mailboxName, jm.run, nil)
	return jm
}

// Mailbox returns the manager's own mailbox, the address clients submit
// control messages to.
func (jm *JobManager) Mailbox() *simcore.Mailbox { return jm.mbox }

func (jm *JobManager) run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := jm.mbox.Get(ctx, jm.clock, tickInterval)
		if err == nil {
			if shuttingDown := jm.handleMessage(ctx, msg); shuttingDown {
				return nil
			}
		} else if err != simcore.ErrNetworkTimeout {
			return nil
		}

		jm.dispatchReady(ctx)
	}
}

func (jm *JobManager) handleMessage(ctx context.Context, msg any) (shutdown bool) {
	if jm.handlePilotMessage(ctx, msg) {
		return false
	}

	switch m := msg.(type) {
	case CreateCompoundJob:
		jm.pending[m.Job.ID] = &entry{job: m.Job}

	case SubmitJob:
		e, ok := jm.pending[m.Job.ID]
		if !ok {
			e = &entry{job: m.Job}
			jm.pending[m.Job.ID] = e
		}
		e.serviceID = m.ServiceID
		e.serviceMbox = m.ServiceMbox
		e.args = m.Args
		e.replyMbox = m.ReplyMbox

	case TerminateJob:
		if e, ok := jm.dispatched[m.JobID]; ok {
			jm.sim.Mailboxes().Get(e.serviceMbox).DPut(action.TerminateJobRequest{JobID: m.JobID})
		}
		delete(jm.pending, m.JobID)
		jm.log.With("job_id", m.JobID).Info("job termination requested")

	case CompoundJobDone:
		jm.finish(jm.dispatched[m.JobID], true, nil)

	case CompoundJobFailed:
		jm.finish(jm.dispatched[m.JobID], false, m.Cause)

	case createStandardJobMsg:
		jm.pending[m.entry.job.ID] = m.entry

	case Shutdown:
		jm.log.Info("job manager shutting down")
		for id := range jm.pending {
			e := jm.pending[id]
			delete(jm.pending, id)
			jm.notifyFailure(e, &failure.JobManagerTerminated{JobID: id})
		}
		return true
	}
	return false
}

// dispatchReady sends SubmitCompoundJobRequest for every pending job
// whose inter-job parents have all completed and which has a service
// target assigned.
func (jm *JobManager) dispatchReady(ctx context.Context) {
	for id, en := range jm.pending {
		if en.serviceMbox == "" {
			continue
		}
		if !en.job.AllParentJobsCompleted() {
			continue
		}

		spanCtx, span := otelspan.StartSpan(ctx, "job."+en.job.ID)
		en.endSpan = func() { span.End() }

		svc := jm.sim.Mailboxes().Get(en.serviceMbox)
		if err := svc.Put(spanCtx, SubmitCompoundJobRequest{Job: en.job, Args: en.args, ReplyMbox: jm.mbox.Name()}); err != nil {
			span.End()
			continue
		}

		reply, err := jm.mbox.Get(ctx, jm.clock, 0)
		delete(jm.pending, id)
		if err != nil {
			jm.notifyFailure(en, &failure.NetworkError{IsTimeout: err == simcore.ErrNetworkTimeout})
			continue
		}

		switch r := reply.(type) {
		case Ack:
			jm.dispatched[id] = en
		case AdmissionRejected:
			jm.notifyFailure(en, r.Cause)
		default:
			jm.handleMessage(ctx, reply)
			jm.dispatched[id] = en
		}
	}
}

// finish applies StandardJob task-state deltas before emitting the
// originator event, then moves the job out of the dispatched set.
func (jm *JobManager) finish(en *entry, success bool, cause failure.Cause) {
	if en == nil {
		return
	}
	if en.endSpan != nil {
		en.endSpan()
	}
	if en.workflow != nil && en.task != nil {
		if success {
			en.workflow.MarkTaskCompleted(en.task.ID)
		} else {
			en.workflow.MarkTaskFailed(en.task.ID)
		}
	}

	delete(jm.dispatched, en.job.ID)

	if en.replyMbox == "" {
		return
	}
	reply := jm.sim.Mailboxes().Get(en.replyMbox)
	if en.task != nil {
		if success {
			reply.DPut(StandardJobCompleted{JobID: en.job.ID})
		} else {
			reply.DPut(StandardJobFailed{JobID: en.job.ID, Cause: cause})
		}
		return
	}
	if success {
		reply.DPut(CompoundJobCompleted{JobID: en.job.ID})
	} else {
		reply.DPut(CompoundJobFailedEvent{JobID: en.job.ID, Cause: cause})
	}
}

func (jm *JobManager) notifyFailure(en *entry, cause failure.Cause) {
	if en == nil {
		return
	}
	if en.endSpan != nil {
		en.endSpan()
	}
	if en.replyMbox == "" {
		return
	}
	reply := jm.sim.Mailboxes().Get(en.replyMbox)
	if en.task != nil {
		if en.workflow != nil {
			en.workflow.MarkTaskFailed(en.task.ID)
		}
		reply.DPut(StandardJobFailed{JobID: en.job.ID, Cause: cause})
		return
	}
	reply.DPut(CompoundJobFailedEvent{JobID: en.job.ID, Cause: cause})
}

// createStandardJobMsg hands a pre-built standard-job entry to the
// manager's own goroutine, so jm.pending is only ever touched by its
// single owning actor even though CreateStandardJob may be called from
// the submitting controller's goroutine.
type createStandardJobMsg struct{ entry *entry }

// CreateStandardJob builds a CompoundJob via action.NewStandardJob and
// registers the association with wf/task so the job's eventual outcome
// updates the task's state, then stages it for submission to service.
func (jm *JobManager) CreateStandardJob(id string, wf *datamodel.Workflow, spec action.StandardJobSpec, serviceMbox string, args map[string]string, replyMbox string) (*action.CompoundJob, error) {
	job, err := action.NewStandardJob(id, spec)
	if err != nil {
		return nil, err
	}
	jm.mbox.DPut(createStandardJobMsg{entry: &entry{
		job:         job,
		serviceMbox: serviceMbox,
		args:        args,
		replyMbox:   replyMbox,
		task:        spec.Task,
		workflow:    wf,
	}})
	return job, nil
}
