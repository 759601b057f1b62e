// Package storage implements a simple in-memory storage service plus the
// chunked transfer machinery (FileTransferThread) and request-coalescing
// data movement manager used by compute actions to read, write, copy,
// and delete files.
package storage

import (
	"context"
	"fmt"

	"github.com/wrenchsim/wrench/internal/simcore"
	"github.com/wrenchsim/wrench/pkg/datamodel"
	"github.com/wrenchsim/wrench/pkg/failure"
)

// ReadRequest asks the service to read NumBytes from Location.
type ReadRequest struct {
	Location *datamodel.FileLocation
	NumBytes int64
}

// WriteRequest asks the service to write NumBytes to Location.
type WriteRequest struct {
	Location *datamodel.FileLocation
	NumBytes int64
}

// CopyRequest asks the service to copy a file from Src to Dst.
type CopyRequest struct {
	Src, Dst *datamodel.FileLocation
}

// DeleteRequest asks the service to remove the file at Location.
type DeleteRequest struct {
	Location *datamodel.FileLocation
}

// RegistryAddRequest/RegistryDeleteRequest mutate the file registry
// without touching the byte-level filesystem table — used for
// bookkeeping actions that just need a location to exist (or not) for
// lookup purposes.
type RegistryAddRequest struct {
	File     *datamodel.DataFile
	Location *datamodel.FileLocation
}

type RegistryDeleteRequest struct {
	File     *datamodel.DataFile
	Location *datamodel.FileLocation
}

// request is the envelope every public Request type above is wrapped in
// before being sent to a service's mailbox.
type request struct {
	payload   any
	replyMbox string
}

// reply carries the outcome of a request back to its sender. Err is nil
// on success.
type reply struct {
	err failure.Cause
}

// TransferViaMailbox sends payload to the service at storageMbox and
// blocks until it replies, translating a failure.Cause reply into a Go
// error. Used by action executors so they don't need to know the
// service's mailbox protocol directly.
func TransferViaMailbox(ctx context.Context, sim *simcore.Simulation, storageMbox string, payload any) error {
	replyName := sim.NewMailboxName("storage-reply")
	replyBox := sim.Mailboxes().Get(replyName)

	svc := sim.Mailboxes().Get(storageMbox)
	if err := svc.Put(ctx, request{payload: payload, replyMbox: replyName}); err != nil {
		return &failure.NetworkError{}
	}

	msg, err := replyBox.Get(ctx, sim.Clock(), 0)
	if err != nil {
		return &failure.NetworkError{IsTimeout: err == simcore.ErrNetworkTimeout}
	}
	r, ok := msg.(reply)
	if !ok {
		return fmt.Errorf("storage: unexpected reply type %T", msg)
	}
	if r.err != nil {
		return r.err
	}
	return nil
}
