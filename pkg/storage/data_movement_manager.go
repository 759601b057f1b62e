package storage

import (
	"context"
	"time"

	"github.com/wrenchsim/wrench/internal/simcore"
	"github.com/wrenchsim/wrench/internal/wlog"
	"github.com/wrenchsim/wrench/pkg/datamodel"
	"github.com/wrenchsim/wrench/pkg/failure"
)

// AsyncReadRequest, AsyncWriteRequest, and AsyncCopyRequest ask the
// manager to perform a transfer and notify ReplyMbox when it finishes.
// A second identical in-flight request attaches its ReplyMbox to the
// existing transfer instead of starting a new one.
type AsyncReadRequest struct {
	Location  *datamodel.FileLocation
	NumBytes  int64
	ReplyMbox string
}

type AsyncWriteRequest struct {
	Location  *datamodel.FileLocation
	NumBytes  int64
	ReplyMbox string
}

type AsyncCopyRequest struct {
	Src, Dst  *datamodel.FileLocation
	ReplyMbox string
}

// ReadCompleted, WriteCompleted, and CopyCompleted are delivered to
// every waiter's reply mailbox once a coalesced transfer finishes.
type ReadCompleted struct {
	Location *datamodel.FileLocation
	Success  bool
	Cause    failure.Cause
}

type WriteCompleted struct {
	Location *datamodel.FileLocation
	Success  bool
	Cause    failure.Cause
}

type CopyCompleted struct {
	Src, Dst *datamodel.FileLocation
	Success  bool
	Cause    failure.Cause
}

type copyKey struct {
	src, dst *datamodel.FileLocation
}

// internal completion messages, routed back through the manager's own
// mailbox so map mutation stays single-writer.
type readDone struct {
	loc   *datamodel.FileLocation
	cause failure.Cause
}
type writeDone struct {
	loc   *datamodel.FileLocation
	cause failure.Cause
}
type copyDone struct {
	key   copyKey
	cause failure.Cause
}

// DataMovementManager coalesces duplicate in-flight async transfer
// requests. Coalescing keys on FileLocation pointer identity — the
// flyweight factory guarantees two calls describing the same place
// return the same pointer, so map-key equality is exactly the identity
// check this needs.
type DataMovementManager struct {
	sim         *simcore.Simulation
	mbox        *simcore.Mailbox
	clock       *simcore.Clock
	storageMbox string
	log         wlog.Logger

	pendingReads  map[*datamodel.FileLocation][]string
	pendingWrites map[*datamodel.FileLocation][]string
	pendingCopies map[copyKey][]string
}

// NewDataMovementManager creates a DataMovementManager fronting the storage service at
// storageMbox, and spawns its actor on host.
func NewDataMovementManager(sim *simcore.Simulation, id string, host *simcore.Host, storageMbox string, log wlog.Logger) *DataMovementManager {
	m := &DataMovementManager{
		sim:           sim,
		mbox:          sim.Mailboxes().Get(id),
		clock:         sim.Clock(),
		storageMbox:   storageMbox,
		log:           log.With("component", "data_movement_manager"),
		pendingReads:  make(map[*datamodel.FileLocation][]string),
		pendingWrites: make(map[*datamodel.FileLocation][]string),
		pendingCopies: make(map[copyKey][]string),
	}
	sim.Spawn(host, id, m.run, nil)
	return m
}

// Mailbox returns the manager's mailbox.
func (m *DataMovementManager) Mailbox() *simcore.Mailbox { return m.mbox }

func (m *DataMovementManager) run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		msg, err := m.mbox.Get(ctx, m.clock, 10*time.Millisecond)
		if err != nil {
			if err == simcore.ErrNetworkTimeout {
				continue
			}
			return nil
		}
		m.handle(ctx, msg)
	}
}

func (m *DataMovementManager) handle(ctx context.Context, msg any) {
	switch req := msg.(type) {
	case AsyncReadRequest:
		if waiters, inflight := m.pendingReads[req.Location]; inflight {
			m.pendingReads[req.Location] = append(waiters, req.ReplyMbox)
			return
		}
		m.pendingReads[req.Location] = []string{req.ReplyMbox}
		go func() {
			err := TransferViaMailbox(ctx, m.sim, m.storageMbox, ReadRequest{Location: req.Location, NumBytes: req.NumBytes})
			m.mbox.DPut(readDone{loc: req.Location, cause: causeOf(err)})
		}()

	case AsyncWriteRequest:
		if waiters, inflight := m.pendingWrites[req.Location]; inflight {
			m.pendingWrites[req.Location] = append(waiters, req.ReplyMbox)
			return
		}
		m.pendingWrites[req.Location] = []string{req.ReplyMbox}
		go func() {
			err := TransferViaMailbox(ctx, m.sim, m.storageMbox, WriteRequest{Location: req.Location, NumBytes: req.NumBytes})
			m.mbox.DPut(writeDone{loc: req.Location, cause: causeOf(err)})
		}()

	case AsyncCopyRequest:
		key := copyKey{src: req.Src, dst: req.Dst}
		if waiters, inflight := m.pendingCopies[key]; inflight {
			m.pendingCopies[key] = append(waiters, req.ReplyMbox)
			return
		}
		m.pendingCopies[key] = []string{req.ReplyMbox}
		go func() {
			err := TransferViaMailbox(ctx, m.sim, m.storageMbox, CopyRequest{Src: req.Src, Dst: req.Dst})
			m.mbox.DPut(copyDone{key: key, cause: causeOf(err)})
		}()

	case readDone:
		for _, rb := range m.pendingReads[req.loc] {
			m.sim.Mailboxes().Get(rb).DPut(ReadCompleted{Location: req.loc, Success: req.cause == nil, Cause: req.cause})
		}
		delete(m.pendingReads, req.loc)

	case writeDone:
		for _, rb := range m.pendingWrites[req.loc] {
			m.sim.Mailboxes().Get(rb).DPut(WriteCompleted{Location: req.loc, Success: req.cause == nil, Cause: req.cause})
		}
		delete(m.pendingWrites, req.loc)

	case copyDone:
		for _, rb := range m.pendingCopies[req.key] {
			m.sim.Mailboxes().Get(rb).DPut(CopyCompleted{Src: req.key.src, Dst: req.key.dst, Success: req.cause == nil, Cause: req.cause})
		}
		delete(m.pendingCopies, req.key)
	}
}

func causeOf(err error) failure.Cause {
	if err == nil {
		return nil
	}
	if cause, ok := err.(failure.Cause); ok {
		return cause
	}
	return &failure.FatalFailure{Message: err.Error()}
}
