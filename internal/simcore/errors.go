package simcore

import "errors"

// ErrNetworkTimeout is returned by Mailbox.Get when the timeout elapses
// before a matching sender arrives. Kept distinct from ErrNetworkError so
// callers can tell a timed-out wait from any other transport fault.
var ErrNetworkTimeout = errors.New("simcore: network timeout")

// ErrNetworkError is returned for any other transport-level failure (e.g.
// the mailbox was closed out from under a waiting receiver).
var ErrNetworkError = errors.New("simcore: network error")

// ErrHostDown is returned by compute/disk primitives when their host is
// turned off mid-operation.
var ErrHostDown = errors.New("simcore: host is down")
