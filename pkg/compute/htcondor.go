package compute

import (
	"context"
	"time"

	"github.com/wrenchsim/wrench/internal/simcore"
	"github.com/wrenchsim/wrench/internal/wlog"
	"github.com/wrenchsim/wrench/pkg/failure"
)

// HTCondorComputeService is a thin routing front-end over one or more
// child compute services: a "grid universe" submission
// (service_specific_args["-universe"] == "grid") is forwarded verbatim to
// the child named by args["-service"]; anything else is admitted locally
// against the service's own bare-metal pool. This mirrors spec.md §6's
// HTCondor-like composite service without reimplementing HTCondor's own
// negotiator — the child it routes to does the actual scheduling.
type HTCondorComputeService struct {
	sim   *simcore.Simulation
	id    string
	mbox  *simcore.Mailbox
	clock *simcore.Clock
	log   wlog.Logger

	local    *BareMetalComputeService
	children map[string]string // batch service name -> mailbox name
}

// NewHTCondorComputeService wires a composite service whose local universe
// is served by local (may be nil if every job must name a batch child) and
// whose grid universe routes by name to batchChildren.
func NewHTCondorComputeService(sim *simcore.Simulation, host *simcore.Host, id string, local *BareMetalComputeService, batchChildren map[string]string, log wlog.Logger) *HTCondorComputeService {
	s := &HTCondorComputeService{
		sim:      sim,
		id:       id,
		mbox:     sim.Mailboxes().Get(id),
		clock:    sim.Clock(),
		log:      log.With("component", "htcondor").With("service_id", id),
		local:    local,
		children: batchChildren,
	}
	sim.Spawn(host, id, s.run, nil)
	return s
}

// Mailbox returns the composite service's own front-door mailbox.
func (s *HTCondorComputeService) Mailbox() *simcore.Mailbox { return s.mbox }

func (s *HTCondorComputeService) run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		msg, err := s.mbox.Get(ctx, s.clock, 10*time.Millisecond)
		if err != nil {
			if err == simcore.ErrNetworkTimeout {
				continue
			}
			return nil
		}
		s.route(ctx, msg)
	}
}

func (s *HTCondorComputeService) route(ctx context.Context, msg any) {
	req, ok := msg.(SubmitCompoundJobRequest)
	if !ok {
		return
	}

	for k := range req.Args {
		if k != "-universe" && k != "-service" {
			reply := s.sim.Mailboxes().Get(req.ReplyMbox)
			reply.Put(ctx, AdmissionRejected{
				JobID: req.Job.ID,
				Cause: &failure.NotAllowed{ServiceID: s.id, Message: "unrecognized service-specific argument " + k},
			})
			return
		}
	}

	if req.Args["-universe"] != "grid" {
		if s.local == nil {
			reply := s.sim.Mailboxes().Get(req.ReplyMbox)
			reply.Put(ctx, AdmissionRejected{
				JobID: req.Job.ID,
				Cause: &failure.JobTypeNotSupported{JobID: req.Job.ID, ServiceID: s.id},
			})
			return
		}
		s.local.mbox.Put(ctx, req)
		return
	}

	childName := req.Args["-service"]
	childMbox, ok := s.children[childName]
	if !ok {
		reply := s.sim.Mailboxes().Get(req.ReplyMbox)
		reply.Put(ctx, AdmissionRejected{
			JobID: req.Job.ID,
			Cause: &failure.JobTypeNotSupported{JobID: req.Job.ID, ServiceID: s.id},
		})
		return
	}
	s.log.With("job_id", req.Job.ID).With("batch_service", childName).Debug("routing grid-universe job to batch child")
	s.sim.Mailboxes().Get(childMbox).Put(ctx, req)
}
