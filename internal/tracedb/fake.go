package tracedb

import (
	"context"
	"sync"

	"github.com/wrenchsim/wrench/pkg/controller"
)

// FakeSink is an in-memory Sink for tests and for runs that don't want a
// real Postgres dependency.
type FakeSink struct {
	mu      sync.Mutex
	Records []controller.Event
}

// NewFakeSink creates an empty FakeSink.
func NewFakeSink() *FakeSink { return &FakeSink{} }

func (f *FakeSink) Record(_ context.Context, evt controller.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Records = append(f.Records, evt)
	return nil
}

func (f *FakeSink) Close() error { return nil }

// Len reports how many events have been recorded so far.
func (f *FakeSink) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Records)
}
