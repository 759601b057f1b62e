package simcore

import (
	"context"
	"sync"
)

// Simulation is the root that scopes every shared structure a run needs:
// the mailbox registry (and its sequence-number generator) and the host
// set. A process can run multiple independent Simulations concurrently by
// constructing more than one root.
type Simulation struct {
	ctx     context.Context
	cancel  context.CancelFunc
	clock   *Clock
	mailbox *Registry
	mu      sync.Mutex
	hosts   map[string]*Host
	actors  map[*Actor]struct{}
}

// New creates a fresh Simulation rooted on ctx.
func New(ctx context.Context) *Simulation {
	ctx, cancel := context.WithCancel(ctx)
	return &Simulation{
		ctx:     ctx,
		cancel:  cancel,
		clock:   NewClock(),
		mailbox: newRegistry(),
		hosts:   make(map[string]*Host),
		actors:  make(map[*Actor]struct{}),
	}
}

// Clock returns the simulation's virtual clock.
func (s *Simulation) Clock() *Clock { return s.clock }

// Mailboxes returns the simulation's mailbox registry.
func (s *Simulation) Mailboxes() *Registry { return s.mailbox }

// AddHost registers a host with the simulation and returns it.
func (s *Simulation) AddHost(h *Host) *Host {
	s.mu.Lock()
	s.hosts[h.ID] = h
	s.mu.Unlock()
	return h
}

// Host looks up a registered host by ID.
func (s *Simulation) Host(id string) (*Host, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hosts[id]
	return h, ok
}

// Hosts returns a snapshot of all registered hosts.
func (s *Simulation) Hosts() []*Host {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Host, 0, len(s.hosts))
	for _, h := range s.hosts {
		out = append(out, h)
	}
	return out
}

// TurnHostOff/TurnHostOn flip a registered host's power state, notifying
// listeners (used by detector.HostStateChangeDetector and fault-injection
// test scenarios).
func (s *Simulation) TurnHostOff(id string) {
	if h, ok := s.Host(id); ok {
		h.SetDown(true)
	}
}

func (s *Simulation) TurnHostOn(id string) {
	if h, ok := s.Host(id); ok {
		h.SetDown(false)
	}
}

func (s *Simulation) trackActor(a *Actor) {
	s.mu.Lock()
	s.actors[a] = struct{}{}
	s.mu.Unlock()
}

func (s *Simulation) untrackActor(a *Actor) {
	s.mu.Lock()
	delete(s.actors, a)
	s.mu.Unlock()
}

// KillAll terminates every live actor spawned by this simulation. Used by
// service shutdown paths, where a service must explicitly tear down every
// actor it spawned rather than relying on process exit.
func (s *Simulation) KillAll() {
	s.mu.Lock()
	actors := make([]*Actor, 0, len(s.actors))
	for a := range s.actors {
		actors = append(actors, a)
	}
	s.mu.Unlock()

	for _, a := range actors {
		a.Kill()
	}
}

// Shutdown cancels the simulation's root context, causing every
// remaining actor's ctx.Done() to fire.
func (s *Simulation) Shutdown() { s.cancel() }

// NewMailboxName mints a process-wide-unique mailbox name, e.g. for
// one-shot answer mailboxes ("answer-read-<seq>").
func (s *Simulation) NewMailboxName(prefix string) string {
	return prefix + "-" + uitoa(s.mailbox.NextSeq())
}

func uitoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
