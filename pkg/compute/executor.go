package compute

import (
	"context"
	"sync"

	"github.com/wrenchsim/wrench/internal/otelspan"
	"github.com/wrenchsim/wrench/internal/simcore"
	"github.com/wrenchsim/wrench/pkg/action"
	"github.com/wrenchsim/wrench/pkg/failure"
	"github.com/wrenchsim/wrench/pkg/storage"
)

// actionExecutor runs exactly one action to completion (or failure) on
// a host reserved for it, then reports back to the owning service's
// mailbox and exits. It is spawned fresh per action rather than reused,
// mirroring a per-node executor handed one unit of work at a time.
type actionExecutor struct {
	svc    *BareMetalComputeService
	jobID  string
	a      *action.Action
	host   *simcore.Host
	cores  int
}

func newActionExecutor(svc *BareMetalComputeService, jobID string, a *action.Action, host *simcore.Host, cores int) *actionExecutor {
	return &actionExecutor{svc: svc, jobID: jobID, a: a, host: host, cores: cores}
}

func (e *actionExecutor) run(ctx context.Context) error {
	ctx, span := otelspan.StartSpan(ctx, "action."+e.a.ID)
	defer span.End()

	err := e.execute(ctx)
	if err != nil {
		otelspan.RecordError(ctx, err)
	}

	if e.host.IsDown() {
		e.svc.mbox.DPut(actionCrashed{jobID: e.jobID, actionID: e.a.ID, hostID: e.host.ID, cores: e.cores, ram: e.a.MinRAM})
		return nil
	}

	if err != nil {
		cause := toFailureCause(err, e.host.ID)
		e.svc.mbox.DPut(actionFailed{jobID: e.jobID, actionID: e.a.ID, hostID: e.host.ID, cores: e.cores, ram: e.a.MinRAM, cause: cause})
		return nil
	}

	e.svc.mbox.DPut(actionDone{jobID: e.jobID, actionID: e.a.ID, hostID: e.host.ID, cores: e.cores, ram: e.a.MinRAM})
	return nil
}

func toFailureCause(err error, hostID string) failure.Cause {
	if cause, ok := err.(failure.Cause); ok {
		return cause
	}
	if err == simcore.ErrHostDown {
		return &failure.HostError{HostID: hostID}
	}
	if err == simcore.ErrNetworkTimeout {
		return &failure.NetworkError{IsTimeout: true}
	}
	if err == simcore.ErrNetworkError {
		return &failure.NetworkError{}
	}
	return &failure.FatalFailure{Message: err.Error()}
}

func (e *actionExecutor) execute(ctx context.Context) error {
	if e.svc.props.ThreadStartupOverhead > 0 {
		if err := e.svc.clock.Park(ctx, e.svc.props.ThreadStartupOverhead); err != nil {
			return err
		}
	}

	switch e.a.Kind {
	case action.Sleep:
		return e.execSleep(ctx)
	case action.Compute:
		return e.execCompute(ctx)
	case action.FileRead:
		return e.execFileRead(ctx)
	case action.FileWrite:
		return e.execFileWrite(ctx)
	case action.FileCopy:
		return e.execFileCopy(ctx)
	case action.FileDelete:
		return e.execFileDelete(ctx)
	case action.FileRegistryAdd:
		return e.execFileRegistryAdd(ctx)
	case action.FileRegistryDelete:
		return e.execFileRegistryDelete(ctx)
	case action.Custom:
		return e.execCustom(ctx)
	case action.MPI:
		return e.execMPI(ctx)
	default:
		return &failure.JobTypeNotSupported{JobID: e.jobID, ServiceID: e.svc.id}
	}
}

func (e *actionExecutor) execSleep(ctx context.Context) error {
	spec := e.a.Spec.(action.SleepSpec)
	return e.svc.clock.Park(ctx, spec.Duration)
}

// execCompute runs the sequential share on a single core, then fans the
// parallel share out across e.cores concurrent compute calls and joins
// them — the thread fan-out/join shape generalized from a wave
// executor's semaphore-bounded goroutine group to one action's worker
// threads.
func (e *actionExecutor) execCompute(ctx context.Context) error {
	spec := e.a.Spec.(action.ComputeSpec)
	seq, perThread := spec.Model.Split(spec.Flops, e.cores)

	if seq > 0 {
		if err := e.host.ComputeFor(ctx, seq); err != nil {
			return err
		}
	}
	if perThread <= 0 || e.cores <= 1 {
		if perThread > 0 {
			return e.host.ComputeFor(ctx, perThread)
		}
		return nil
	}

	var wg sync.WaitGroup
	errCh := make(chan error, e.cores)
	for i := 0; i < e.cores; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.host.ComputeFor(ctx, perThread); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return &failure.ComputeThreadHasDied{ActionID: e.a.ID}
		}
	}
	return nil
}

func (e *actionExecutor) execFileRead(ctx context.Context) error {
	spec := e.a.Spec.(action.FileReadSpec)

	loc := spec.Location
	var mbox string
	if spec.Resolver != nil {
		resolved, err := spec.Resolver.Resolve(ctx, spec.File)
		if err != nil {
			return err
		}
		loc = resolved
		mbox = string(loc.Storage)
	} else {
		resolved, resolvedMbox, cause := e.svc.resolveLocation(loc)
		if cause != nil {
			return cause
		}
		loc, mbox = resolved, resolvedMbox
	}

	return storage.TransferViaMailbox(ctx, e.svc.sim, mbox, storage.ReadRequest{
		Location: loc,
		NumBytes: spec.NumBytes,
	})
}

func (e *actionExecutor) execFileWrite(ctx context.Context) error {
	spec := e.a.Spec.(action.FileWriteSpec)
	loc, mbox, cause := e.svc.resolveLocation(spec.Location)
	if cause != nil {
		return cause
	}
	return storage.TransferViaMailbox(ctx, e.svc.sim, mbox, storage.WriteRequest{
		Location: loc,
		NumBytes: spec.NumBytes,
	})
}

func (e *actionExecutor) execFileCopy(ctx context.Context) error {
	spec := e.a.Spec.(action.FileCopySpec)
	src, _, cause := e.svc.resolveLocation(spec.Src)
	if cause != nil {
		return cause
	}
	dst, mbox, cause := e.svc.resolveLocation(spec.Dst)
	if cause != nil {
		return cause
	}
	return storage.TransferViaMailbox(ctx, e.svc.sim, mbox, storage.CopyRequest{
		Src: src,
		Dst: dst,
	})
}

func (e *actionExecutor) execFileDelete(ctx context.Context) error {
	spec := e.a.Spec.(action.FileDeleteSpec)
	loc, mbox, cause := e.svc.resolveLocation(spec.Location)
	if cause != nil {
		return cause
	}
	return storage.TransferViaMailbox(ctx, e.svc.sim, mbox, storage.DeleteRequest{
		Location: loc,
	})
}

func (e *actionExecutor) execFileRegistryAdd(ctx context.Context) error {
	spec := e.a.Spec.(action.FileRegistrySpec)
	loc, mbox, cause := e.svc.resolveLocation(spec.Location)
	if cause != nil {
		return cause
	}
	return storage.TransferViaMailbox(ctx, e.svc.sim, mbox, storage.RegistryAddRequest{
		File: spec.File, Location: loc,
	})
}

func (e *actionExecutor) execFileRegistryDelete(ctx context.Context) error {
	spec := e.a.Spec.(action.FileRegistrySpec)
	loc, mbox, cause := e.svc.resolveLocation(spec.Location)
	if cause != nil {
		return cause
	}
	return storage.TransferViaMailbox(ctx, e.svc.sim, mbox, storage.RegistryDeleteRequest{
		File: spec.File, Location: loc,
	})
}

func (e *actionExecutor) execCustom(ctx context.Context) error {
	spec := e.a.Spec.(action.CustomSpec)
	return spec.Fn(execContext{hostID: e.host.ID}, 0)
}

// execMPI runs NumRanks concurrent invocations of Fn, joined before the
// action completes — the idiomatic-Go analogue of a multi-process MPI
// job, one goroutine per rank instead of one OS process per rank.
func (e *actionExecutor) execMPI(ctx context.Context) error {
	spec := e.a.Spec.(action.MPISpec)
	if spec.NumRanks < 1 {
		spec.NumRanks = 1
	}

	var wg sync.WaitGroup
	errCh := make(chan error, spec.NumRanks)
	for rank := 0; rank < spec.NumRanks; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			if err := spec.Fn(execContext{hostID: e.host.ID}, rank); err != nil {
				errCh <- err
			}
		}(rank)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// execContext implements action.ActionExecutionContext.
type execContext struct {
	hostID string
}

func (c execContext) HostID() string { return c.hostID }
