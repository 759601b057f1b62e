package compute

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/wrenchsim/wrench/internal/metrics"
	"github.com/wrenchsim/wrench/internal/simcore"
	"github.com/wrenchsim/wrench/internal/wlog"
	"github.com/wrenchsim/wrench/pkg/action"
	"github.com/wrenchsim/wrench/pkg/datamodel"
	"github.com/wrenchsim/wrench/pkg/failure"
)

const tickInterval = 10 * time.Millisecond

// Properties mirrors the named scheduler/storage properties the
// original system exposes as free-form key/value config, surfaced here
// as typed fields since Go gives us that for free.
type Properties struct {
	// TerminateWheneverAllResourcesAreDown, when true, makes the
	// scheduler shut itself down once every host is down and no
	// executor is running, failing all pending actions with HostError.
	TerminateWheneverAllResourcesAreDown bool

	// ReReadyActionAfterActionExecutorCrash, when true, makes an
	// action whose host died mid-execution go back to Ready instead of
	// failing permanently.
	ReReadyActionAfterActionExecutorCrash bool

	// ThreadStartupOverhead is charged once per spawned compute thread
	// before it starts doing work, modelling OS/runtime thread-start
	// latency.
	ThreadStartupOverhead time.Duration
}

// DefaultProperties returns the properties a freshly built service has
// if the caller doesn't override anything.
func DefaultProperties() Properties {
	return Properties{
		TerminateWheneverAllResourcesAreDown:  false,
		ReReadyActionAfterActionExecutorCrash: true,
		ThreadStartupOverhead:                 0,
	}
}

type jobEntry struct {
	job       *action.CompoundJob
	replyMbox string
	args      map[string]string
	running   map[string]*runningAction // actionID -> reservation
}

type runningAction struct {
	hostID string
	cores  int
	ram    int64
	actor  *simcore.Actor
	act    *action.Action
}

// CacheInvalidator is the subset of xrootd.Deployment's API a compute
// service needs to implement spec.md's "compute invalidates caches" rule
// and keep the federation's Metavisor in sync with what a leaf's
// storage actually holds, kept as a narrow structural interface so
// pkg/compute never imports pkg/xrootd.
type CacheInvalidator interface {
	InvalidateCache(fileID string)
	RegisterFile(loc *datamodel.FileLocation)
	UnregisterFile(loc *datamodel.FileLocation)
}

// BareMetalComputeService is a simcore.Actor that owns a fixed pool of
// hosts and schedules CompoundJob actions onto them directly (no
// container/VM layer), tracking per-host core and RAM occupancy the way
// a resource-aware placement scheduler tracks node allocation.
type BareMetalComputeService struct {
	sim   *simcore.Simulation
	id    string
	mbox  *simcore.Mailbox
	clock *simcore.Clock
	log   wlog.Logger

	storageMbox string
	props       Properties

	hosts          []*simcore.Host
	coresAvailable map[string]int
	ramAvailable   map[string]int64
	runningThreads map[string]int

	jobs map[string]*jobEntry

	invalidator CacheInvalidator
	scratchLF   *datamodel.LocationFactory
}

// SetCacheInvalidator attaches the storage overlay whose per-node caches
// should be invalidated whenever a FileWrite, FileCopy or FileDelete
// action completes. Optional: a service with no invalidator set simply skips
// the notification, as spec.md's storage services that aren't fronted
// by an XRootD overlay have nothing to invalidate.
func (s *BareMetalComputeService) SetCacheInvalidator(inv CacheInvalidator) {
	s.invalidator = inv
}

// SetScratchFactory attaches the datamodel.LocationFactory that resolves
// this service's SCRATCH locations to a concrete storage service
// registered as "scratch@<service id>". Left unset, any action
// addressing a datamodel.ScratchLocation fails with
// failure.NoScratchSpace, matching a compute service with no local
// scratch disk.
func (s *BareMetalComputeService) SetScratchFactory(lf *datamodel.LocationFactory) {
	s.scratchLF = lf
}

// resolveLocation rewrites a SCRATCH location against this service's
// scratch factory and returns the concrete location together with its
// storage mailbox; a non-SCRATCH location passes through unchanged
// against the service's default storage mailbox.
func (s *BareMetalComputeService) resolveLocation(loc *datamodel.FileLocation) (*datamodel.FileLocation, string, failure.Cause) {
	if loc == nil || !loc.IsScratch {
		return loc, s.storageMbox, nil
	}
	if s.scratchLF == nil {
		return nil, "", &failure.NoScratchSpace{Message: "service " + s.id + " has no scratch storage configured"}
	}
	resolved := s.scratchLF.Resolve(loc, s.id)
	return resolved, string(resolved.Storage), nil
}

// New creates a compute service owning hosts, spawns its actor on the
// first host, and returns it.
func New(sim *simcore.Simulation, id string, hosts []*simcore.Host, storageMbox string, props Properties, log wlog.Logger) *BareMetalComputeService {
	s := &BareMetalComputeService{
		sim:            sim,
		id:             id,
		mbox:           sim.Mailboxes().Get(id),
		clock:          sim.Clock(),
		log:            log.With("component", "compute").With("service_id", id),
		storageMbox:    storageMbox,
		props:          props,
		hosts:          hosts,
		coresAvailable: make(map[string]int),
		ramAvailable:   make(map[string]int64),
		runningThreads: make(map[string]int),
		jobs:           make(map[string]*jobEntry),
	}
	for _, h := range hosts {
		s.coresAvailable[h.ID] = h.Cores
		s.ramAvailable[h.ID] = h.RAMBytes
	}
	if len(hosts) > 0 {
		sim.Spawn(hosts[0], id, s.run, nil)
	}
	return s
}

// Mailbox returns the service's mailbox.
func (s *BareMetalComputeService) Mailbox() *simcore.Mailbox { return s.mbox }

func (s *BareMetalComputeService) run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			s.stop(true)
			return nil
		}

		msg, err := s.mbox.Get(ctx, s.clock, tickInterval)
		if err == nil {
			s.handleMessage(ctx, msg)
		} else if err != simcore.ErrNetworkTimeout {
			s.stop(true)
			return nil
		}

		s.dispatch(ctx)

		if s.props.TerminateWheneverAllResourcesAreDown && s.allHostsDownAndIdle() {
			s.log.Warn("all hosts down with no running executors, terminating")
			for _, je := range s.jobs {
				for _, a := range je.job.ReadyActions() {
					je.job.MarkFailed(a.ID, s.clock.Now(), &failure.HostError{HostID: s.hosts[0].ID})
				}
			}
			s.dispatch(ctx)
			s.stop(false)
			return nil
		}
	}
}

func (s *BareMetalComputeService) allHostsDownAndIdle() bool {
	for _, h := range s.hosts {
		if !h.IsDown() {
			return false
		}
	}
	for _, je := range s.jobs {
		if len(je.running) > 0 {
			return false
		}
	}
	return true
}

func (s *BareMetalComputeService) handleMessage(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case SubmitCompoundJobRequest:
		s.admit(ctx, m)

	case action.TerminateJobRequest:
		s.terminateJob(m.JobID)

	case actionDone:
		s.onActionDone(m)

	case actionFailed:
		s.onActionFailed(m)

	case actionCrashed:
		s.onActionCrashed(m)
	}
}

// admit runs admission control: every action in the job must fit some
// host's raw capacity (not necessarily currently available — that's
// what dispatch's best-fit check handles later).
func (s *BareMetalComputeService) admit(ctx context.Context, req SubmitCompoundJobRequest) {
	for _, a := range req.Job.Actions() {
		if !s.someHostCanEverRun(a) {
			reply := s.sim.Mailboxes().Get(req.ReplyMbox)
			reply.Put(ctx, AdmissionRejected{
				JobID: req.Job.ID,
				Cause: &failure.NotEnoughResources{JobID: req.Job.ID, ServiceID: s.id},
			})
			return
		}
	}

	s.jobs[req.Job.ID] = &jobEntry{
		job:       req.Job,
		replyMbox: req.ReplyMbox,
		args:      req.Args,
		running:   make(map[string]*runningAction),
	}
	reply := s.sim.Mailboxes().Get(req.ReplyMbox)
	reply.Put(ctx, Ack{JobID: req.Job.ID})
	metrics.JobsSubmittedTotal.WithLabelValues(s.id).Inc()
}

func (s *BareMetalComputeService) someHostCanEverRun(a *action.Action) bool {
	for _, h := range s.hosts {
		if h.Cores >= a.MinCores && h.RAMBytes >= a.MinRAM {
			return true
		}
	}
	return false
}

// dispatch scans every submitted job's ready actions and places as many
// as currently fit, best-fit by remaining cores unless
// service_specific_args names an explicit "host:cores" placement.
func (s *BareMetalComputeService) dispatch(ctx context.Context) {
	for jobID, je := range s.jobs {
		for _, a := range je.job.ReadyActions() {
			hostID, cores, ok := s.selectHost(a, je.args)
			if !ok {
				continue
			}

			ram := a.MinRAM
			s.coresAvailable[hostID] -= cores
			s.ramAvailable[hostID] -= ram
			s.runningThreads[hostID] += cores
			s.reportHostUsage(hostID)

			je.job.MarkStarted(a.ID, s.clock.Now())

			host, _ := s.sim.Host(hostID)
			exec := newActionExecutor(s, jobID, a, host, cores)
			actor := s.sim.Spawn(host, s.id+"-exec-"+a.ID, exec.run, nil)
			je.running[a.ID] = &runningAction{hostID: hostID, cores: cores, ram: ram, actor: actor, act: a}
			metrics.ActionsDispatchedTotal.WithLabelValues(s.id, a.Kind.String()).Inc()
		}

		if je.job.IsTerminal() {
			s.finishJob(ctx, jobID, je)
		}
	}
}

func (s *BareMetalComputeService) selectHost(a *action.Action, args map[string]string) (hostID string, cores int, ok bool) {
	if raw, present := args[a.Name]; present {
		hint, valid := parseHostCores(raw)
		if !valid {
			return "", 0, false
		}
		if s.coresAvailable[hint.host] >= hint.cores && s.ramAvailable[hint.host] >= a.MinRAM {
			host, exists := s.sim.Host(hint.host)
			if exists && !host.IsDown() {
				return hint.host, hint.cores, true
			}
		}
		return "", 0, false
	}

	// Best-fit: among hosts with enough free capacity, prefer the one
	// with the fewest free cores left over — packing tightly instead
	// of always landing on the most idle host.
	bestHost := ""
	bestAvail := 0
	bestCores := 0
	for _, h := range s.hosts {
		if h.IsDown() {
			continue
		}
		avail := s.coresAvailable[h.ID]
		if avail < a.MinCores || s.ramAvailable[h.ID] < a.MinRAM {
			continue
		}
		want := a.MaxCores
		if avail < want {
			want = avail
		}
		if bestHost == "" || avail < bestAvail {
			bestHost = h.ID
			bestAvail = avail
			bestCores = want
		}
	}
	if bestHost == "" {
		return "", 0, false
	}
	return bestHost, bestCores, true
}

type hostHint struct {
	host  string
	cores int
}

func (s *BareMetalComputeService) releaseResources(hostID string, cores int, ram int64) {
	s.coresAvailable[hostID] += cores
	s.ramAvailable[hostID] += ram
	s.runningThreads[hostID] -= cores
	s.reportHostUsage(hostID)
}

// reportHostUsage publishes the host's current core/RAM occupancy,
// derived from the capacity tracked at service construction time minus
// what's currently marked available.
func (s *BareMetalComputeService) reportHostUsage(hostID string) {
	for _, h := range s.hosts {
		if h.ID != hostID {
			continue
		}
		metrics.HostCoresInUse.WithLabelValues(hostID).Set(float64(h.Cores - s.coresAvailable[hostID]))
		metrics.HostRAMInUseBytes.WithLabelValues(hostID).Set(float64(h.RAMBytes - s.ramAvailable[hostID]))
		return
	}
}

func (s *BareMetalComputeService) onActionDone(m actionDone) {
	je, ok := s.jobs[m.jobID]
	if !ok {
		return
	}
	s.releaseResources(m.hostID, m.cores, m.ram)
	if ra, ok := je.running[m.actionID]; ok {
		s.notifyOverlay(ra.act)
	}
	delete(je.running, m.actionID)
	je.job.MarkCompleted(m.actionID, s.clock.Now())
}

// notifyOverlay tells the attached CacheInvalidator (if any) about a
// just-completed action's effect on file placement: FileWrite/FileCopy
// invalidate stale caches and register the destination with the
// Metavisor per spec.md §4.5's "compute invalidates caches" rule;
// FileDelete invalidates caches and unregisters the location;
// FileRegistryAdd/Delete register/unregister without touching caches.
func (s *BareMetalComputeService) notifyOverlay(a *action.Action) {
	if s.invalidator == nil || a == nil {
		return
	}
	switch spec := a.Spec.(type) {
	case action.FileWriteSpec:
		if spec.Location != nil && spec.Location.File != nil {
			s.invalidator.InvalidateCache(spec.Location.File.ID)
			s.invalidator.RegisterFile(spec.Location)
		}
	case action.FileCopySpec:
		if spec.Dst != nil && spec.Dst.File != nil {
			s.invalidator.InvalidateCache(spec.Dst.File.ID)
			s.invalidator.RegisterFile(spec.Dst)
		}
	case action.FileDeleteSpec:
		if spec.Location != nil && spec.Location.File != nil {
			s.invalidator.InvalidateCache(spec.Location.File.ID)
			s.invalidator.UnregisterFile(spec.Location)
		}
	case action.FileRegistrySpec:
		switch a.Kind {
		case action.FileRegistryAdd:
			s.invalidator.RegisterFile(spec.Location)
		case action.FileRegistryDelete:
			s.invalidator.UnregisterFile(spec.Location)
		}
	}
}

func (s *BareMetalComputeService) onActionFailed(m actionFailed) {
	je, ok := s.jobs[m.jobID]
	if !ok {
		return
	}
	s.releaseResources(m.hostID, m.cores, m.ram)
	delete(je.running, m.actionID)
	je.job.MarkFailed(m.actionID, s.clock.Now(), m.cause)
}

func (s *BareMetalComputeService) onActionCrashed(m actionCrashed) {
	je, ok := s.jobs[m.jobID]
	if !ok {
		return
	}
	s.releaseResources(m.hostID, m.cores, m.ram)
	delete(je.running, m.actionID)

	if s.props.ReReadyActionAfterActionExecutorCrash {
		je.job.ResetToReady(m.actionID)
		return
	}
	je.job.MarkFailed(m.actionID, s.clock.Now(), &failure.HostError{HostID: m.hostID})
}

func (s *BareMetalComputeService) finishJob(ctx context.Context, jobID string, je *jobEntry) {
	state, cause := je.job.Rollup()
	reply := s.sim.Mailboxes().Get(je.replyMbox)
	if state == action.JobCompleted {
		reply.Put(ctx, CompoundJobDone{JobID: jobID})
		metrics.JobsCompletedTotal.WithLabelValues(s.id, "completed").Inc()
	} else {
		reply.Put(ctx, CompoundJobFailed{JobID: jobID, Cause: cause})
		metrics.JobsCompletedTotal.WithLabelValues(s.id, "failed").Inc()
	}
	delete(s.jobs, jobID)
}

func (s *BareMetalComputeService) terminateJob(jobID string) {
	je, ok := s.jobs[jobID]
	if !ok {
		return
	}
	for actionID, ra := range je.running {
		ra.actor.Kill()
		s.releaseResources(ra.hostID, ra.cores, ra.ram)
		je.job.MarkKilled(actionID, s.clock.Now(), &failure.JobKilled{JobID: jobID})
	}
	je.running = make(map[string]*runningAction)
}

// stop kills every running executor, marking its action Killed, and
// fails every Ready action; descendants of either are failed with
// ParentActionFailed. selfInitiated distinguishes the service itself
// going down (ServiceIsDown) from a requester-driven termination
// (JobKilled).
func (s *BareMetalComputeService) stop(selfInitiated bool) {
	for jobID, je := range s.jobs {
		cause := failure.Cause(&failure.ServiceIsDown{ServiceID: s.id})
		if !selfInitiated {
			cause = &failure.JobKilled{JobID: jobID}
		}
		for actionID, ra := range je.running {
			ra.actor.Kill()
			s.releaseResources(ra.hostID, ra.cores, ra.ram)
			je.job.MarkKilled(actionID, s.clock.Now(), cause)
		}
		je.running = make(map[string]*runningAction)
		for _, a := range je.job.ReadyActions() {
			je.job.MarkFailed(a.ID, s.clock.Now(), cause)
		}
	}
}

// parseHostCores parses a "host:cores" service_specific_args hint.
func parseHostCores(v string) (hostHint, bool) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return hostHint{}, false
	}
	cores, err := strconv.Atoi(parts[1])
	if err != nil || cores < 1 {
		return hostHint{}, false
	}
	return hostHint{host: parts[0], cores: cores}, true
}
