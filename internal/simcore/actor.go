package simcore

import (
	"context"
	"sync"
)

// Actor is a cooperative, single-threaded unit of execution bound to a
// host. It is always backed by exactly one goroutine; actors never
// execute in true parallel with themselves, only interleave at explicit
// suspension points (mailbox receives, clock parks).
type Actor struct {
	Name   string
	Host   *Host
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	retval error
}

// Spawn starts fn as a new actor bound to host, registering it with the
// Simulation's clock so the clock's all-parked barrier accounts for it.
// cleanup runs exactly once, on any return path (normal, panic, or kill).
func (s *Simulation) Spawn(host *Host, name string, fn func(ctx context.Context) error, cleanup func(hasReturned bool, retval error)) *Actor {
	ctx, cancel := context.WithCancel(s.ctx)
	a := &Actor{
		Name:   name,
		Host:   host,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.clock.RegisterActor()
	s.trackActor(a)

	go func() {
		defer s.clock.UnregisterActor()
		defer s.untrackActor(a)

		var hasReturned bool
		var retval error

		func() {
			defer func() {
				if r := recover(); r != nil {
					retval = ErrNetworkError
				}
			}()
			retval = fn(ctx)
			hasReturned = true
		}()

		a.once.Do(func() {
			a.retval = retval
			if cleanup != nil {
				cleanup(hasReturned, retval)
			}
			close(a.done)
		})
	}()

	return a
}

// Kill cancels the actor's context and blocks until its cleanup hook has
// run. Safe to call at any point in the actor's lifetime, including after
// it has already finished.
func (a *Actor) Kill() {
	a.cancel()
	<-a.done
}

// Join blocks until the actor returns naturally or is killed.
func (a *Actor) Join() error {
	<-a.done
	return a.retval
}

// Done reports whether the actor has finished (normally or killed).
func (a *Actor) Done() <-chan struct{} { return a.done }
