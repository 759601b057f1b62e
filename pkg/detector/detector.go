// Package detector implements the two asynchronous-notification helpers
// spec.md §4.3/§5 assume exist: a host state-change detector (used by the
// compute service and XRootD nodes to learn a host just died) and a
// service-termination detector (used by anything that needs to react to
// another actor's goroutine exiting, translating it into a failure.Cause).
package detector

import (
	"context"
	"sync"

	"github.com/wrenchsim/wrench/internal/simcore"
	"github.com/wrenchsim/wrench/internal/wlog"
	"github.com/wrenchsim/wrench/pkg/failure"
)

// HostStateChangeDetector fans a host's up/down transitions out to every
// registered listener synchronously, before Host.SetDown returns control
// to the clock — so no action can be dispatched to a host between its
// death and the listeners having reacted to it.
type HostStateChangeDetector struct {
	mu        sync.Mutex
	listeners []func(hostID string, down bool)
	log       wlog.Logger
}

// New creates a detector with no listeners attached.
func New(log wlog.Logger) *HostStateChangeDetector {
	return &HostStateChangeDetector{log: log.With("component", "host_state_change_detector")}
}

// Watch subscribes the detector to host's power-state transitions.
func (d *HostStateChangeDetector) Watch(host *simcore.Host) {
	host.OnStateChange(func(down bool) {
		d.notify(host.ID, down)
	})
}

// OnChange registers fn to run on every watched host's transition. Safe to
// call from any number of interested services (compute service, XRootD
// nodes on that host).
func (d *HostStateChangeDetector) OnChange(fn func(hostID string, down bool)) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

func (d *HostStateChangeDetector) notify(hostID string, down bool) {
	d.mu.Lock()
	listeners := append([]func(string, bool){}, d.listeners...)
	d.mu.Unlock()

	state := "up"
	if down {
		state = "down"
	}
	d.log.With("host_id", hostID).With("state", state).Info("host state changed")

	for _, fn := range listeners {
		fn(hostID, down)
	}
}

// ServiceTerminationDetector wraps a simcore.Actor handle and translates
// its unexpected exit into a ServiceIsDown failure cause. Used by anything
// that holds a reference to a spawned service actor and needs to notice,
// without polling, that it went away.
type ServiceTerminationDetector struct {
	serviceID string
	actor     *simcore.Actor
}

// Watch creates a detector for actor, identified in failure causes as
// serviceID.
func Watch(serviceID string, actor *simcore.Actor) *ServiceTerminationDetector {
	return &ServiceTerminationDetector{serviceID: serviceID, actor: actor}
}

// Wait blocks until the wrapped actor's goroutine returns (normally,
// killed, or panicked), or ctx is cancelled first. A non-nil return value
// other than ctx.Err() is always a *failure.ServiceIsDown.
func (d *ServiceTerminationDetector) Wait(ctx context.Context) error {
	select {
	case <-d.actor.Done():
		return &failure.ServiceIsDown{ServiceID: d.serviceID}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsDown reports whether the wrapped actor has already terminated, without
// blocking.
func (d *ServiceTerminationDetector) IsDown() bool {
	select {
	case <-d.actor.Done():
		return true
	default:
		return false
	}
}
