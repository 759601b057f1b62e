package simcore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Host models one compute node: a fixed core count, a flop rate per core,
// RAM capacity, and one attached Disk. Hosts can be turned up/down to
// drive fault-injection scenarios and the host-state-change detector.
type Host struct {
	ID            string
	Cores         int
	FlopsPerCore  float64
	RAMBytes      int64
	Disk          *Disk
	clock         *Clock
	down          atomic.Bool
	downListeners []func(down bool)
	mu            sync.Mutex
}

// NewHost creates a host with the given capacity, attached to clock.
func NewHost(id string, cores int, flopsPerCore float64, ramBytes int64, diskRateBytesPerSec float64, clock *Clock) *Host {
	return &Host{
		ID:           id,
		Cores:        cores,
		FlopsPerCore: flopsPerCore,
		RAMBytes:     ramBytes,
		Disk:         &Disk{ratePerSec: diskRateBytesPerSec, clock: clock},
		clock:        clock,
	}
}

// IsDown reports whether the host is currently powered off.
func (h *Host) IsDown() bool { return h.down.Load() }

// OnStateChange registers a listener invoked whenever the host flips
// up/down. Consumed by detector.HostStateChangeDetector.
func (h *Host) OnStateChange(fn func(down bool)) {
	h.mu.Lock()
	h.downListeners = append(h.downListeners, fn)
	h.mu.Unlock()
}

// SetDown flips the host's power state and notifies listeners.
func (h *Host) SetDown(down bool) {
	if h.down.Swap(down) == down {
		return
	}
	h.mu.Lock()
	listeners := append([]func(down bool){}, h.downListeners...)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(down)
	}
}

// ComputeFor charges ctx for the wall-time needed to execute flops worth
// of work on a single core of this host. Returns ErrHostDown if the host
// is down when the call starts.
func (h *Host) ComputeFor(ctx context.Context, flops float64) error {
	if h.IsDown() {
		return ErrHostDown
	}
	if flops <= 0 {
		return nil
	}
	seconds := flops / h.FlopsPerCore
	return h.clock.Park(ctx, time.Duration(seconds*float64(time.Second)))
}

// Disk models one disk attached to a Host: a fixed byte rate, charged per
// read or write performed against it.
type Disk struct {
	ratePerSec float64
	clock      *Clock
}

// Read charges ctx for the time to read numBytes from this disk.
func (d *Disk) Read(ctx context.Context, numBytes int64) error {
	return d.charge(ctx, numBytes)
}

// Write charges ctx for the time to write numBytes to this disk.
func (d *Disk) Write(ctx context.Context, numBytes int64) error {
	return d.charge(ctx, numBytes)
}

func (d *Disk) charge(ctx context.Context, numBytes int64) error {
	if numBytes <= 0 {
		return nil
	}
	seconds := float64(numBytes) / d.ratePerSec
	return d.clock.Park(ctx, time.Duration(seconds*float64(time.Second)))
}
