package jobmanager

import (
	"context"
	"time"
)

// PilotJob is a resource-lease job: unlike a CompoundJob, it runs no
// actions of its own. It is a lease timer of length Duration kept by the
// JobManager, then expires; the manager sends nothing to ServiceMbox, so
// no cores or RAM are reserved on the target service. Supplement over spec.md's
// distillation (named in original_source/ but dropped from the core
// spec); its PilotJobStarted/PilotJobExpired events reuse the execution-
// event channel spec.md §4.6 already names, so only the producer was
// missing, not the event type.
type PilotJob struct {
	ID          string
	ServiceMbox string
	Duration    time.Duration
	ReplyMbox   string
}

// SubmitPilotJob asks the manager to start a lease for pilot immediately
// (pilot jobs have no inter-job parents to wait on).
type SubmitPilotJob struct {
	Pilot *PilotJob
}

// TerminatePilotJob asks the manager to end a lease early.
type TerminatePilotJob struct {
	PilotID string
}

// PilotJobStarted/PilotJobExpired are the originator-facing events a
// pilot job's lifecycle produces.
type PilotJobStarted struct{ PilotID string }
type PilotJobExpired struct{ PilotID string }

// internal: the manager's own lease-timer actor reports expiry back
// through the manager's mailbox so state mutation stays single-writer.
type pilotExpired struct{ pilotID string }

type pilotEntry struct {
	pilot     *PilotJob
	cancelled bool
}

// CreatePilotJob builds a PilotJob client-side; the caller still submits
// it via SubmitPilotJob{Pilot: job} through the manager's mailbox.
func CreatePilotJob(id, serviceMbox string, duration time.Duration, replyMbox string) *PilotJob {
	return &PilotJob{ID: id, ServiceMbox: serviceMbox, Duration: duration, ReplyMbox: replyMbox}
}

func (jm *JobManager) handlePilotMessage(ctx context.Context, msg any) (handled bool) {
	switch m := msg.(type) {
	case SubmitPilotJob:
		jm.startPilot(ctx, m.Pilot)
		return true

	case TerminatePilotJob:
		jm.terminatePilot(m.PilotID)
		return true

	case pilotExpired:
		jm.expirePilot(m.pilotID)
		return true
	}
	return false
}

func (jm *JobManager) startPilot(ctx context.Context, p *PilotJob) {
	if jm.pilots == nil {
		jm.pilots = make(map[string]*pilotEntry)
	}
	entry := &pilotEntry{pilot: p}
	jm.pilots[p.ID] = entry

	jm.sim.Spawn(jm.host, "pilot-"+p.ID, func(actorCtx context.Context) error {
		return jm.clock.Park(actorCtx, p.Duration)
	}, func(hasReturned bool, _ error) {
		if hasReturned {
			jm.mbox.DPut(pilotExpired{pilotID: p.ID})
		}
	})

	if p.ReplyMbox != "" {
		jm.sim.Mailboxes().Get(p.ReplyMbox).DPut(PilotJobStarted{PilotID: p.ID})
	}
	jm.log.With("pilot_id", p.ID).Info("pilot job lease started")
}

func (jm *JobManager) terminatePilot(pilotID string) {
	entry, ok := jm.pilots[pilotID]
	if !ok {
		return
	}
	entry.cancelled = true
	delete(jm.pilots, pilotID)
	jm.log.With("pilot_id", pilotID).Info("pilot job lease terminated early")
}

func (jm *JobManager) expirePilot(pilotID string) {
	entry, ok := jm.pilots[pilotID]
	if !ok || entry.cancelled {
		return
	}
	delete(jm.pilots, pilotID)
	if entry.pilot.ReplyMbox != "" {
		jm.sim.Mailboxes().Get(entry.pilot.ReplyMbox).DPut(PilotJobExpired{PilotID: pilotID})
	}
	jm.log.With("pilot_id", pilotID).Info("pilot job lease expired")
}
