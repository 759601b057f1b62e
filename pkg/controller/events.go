// Package controller implements the execution-event channel an
// ExecutionController (a WMS driver) reads from: a typed cursor over a
// controller's inbound mailbox that demultiplexes job/action manager
// traffic into the named event variants spec.md §4.6 enumerates.
package controller

import (
	"github.com/wrenchsim/wrench/pkg/failure"
)

// Kind discriminates an Event's payload.
type Kind int

const (
	// EventNone is the zero Event, returned on a mailbox receive timeout
	// rather than as an error — a timeout is an expected outcome of
	// polling for the next event, not a failure.
	EventNone Kind = iota
	StandardJobCompleted
	StandardJobFailed
	CompoundJobCompleted
	CompoundJobFailed
	PilotJobStarted
	PilotJobExpired
	FileCopyCompleted
	FileCopyFailed
	Timer
)

func (k Kind) String() string {
	switch k {
	case EventNone:
		return "NONE"
	case StandardJobCompleted:
		return "STANDARD_JOB_COMPLETED"
	case StandardJobFailed:
		return "STANDARD_JOB_FAILED"
	case CompoundJobCompleted:
		return "COMPOUND_JOB_COMPLETED"
	case CompoundJobFailed:
		return "COMPOUND_JOB_FAILED"
	case PilotJobStarted:
		return "PILOT_JOB_STARTED"
	case PilotJobExpired:
		return "PILOT_JOB_EXPIRED"
	case FileCopyCompleted:
		return "FILE_COPY_COMPLETED"
	case FileCopyFailed:
		return "FILE_COPY_FAILED"
	case Timer:
		return "TIMER"
	default:
		return "UNKNOWN"
	}
}

// Event is a closed sum type over every message kind
// waitForNextExecutionEvent can demultiplex. Only the field matching Kind
// is populated; the rest are zero values.
type Event struct {
	Kind Kind

	JobID string
	Cause failure.Cause

	// PilotJobID identifies the PilotJob a PilotJobStarted/PilotJobExpired
	// event concerns.
	PilotJobID string

	// CopySrc/CopyDst identify the transfer a FileCopyCompleted/
	// FileCopyFailed event concerns, as opaque location descriptions
	// (callers that need the concrete datamodel.FileLocation should read
	// storage.CopyCompleted (whose Success field marks a failure) off the
	// same mailbox directly;
	// these fields exist for callers that only need to log or count).
	CopySrc, CopyDst string
}

// ExecutionException is returned by WaitForNextEvent for any transport
// fault other than a plain receive timeout (which instead yields the zero
// Event, EventNone).
type ExecutionException struct {
	Cause failure.Cause
}

func (e *ExecutionException) Error() string { return "execution exception: " + e.Cause.Error() }
func (e *ExecutionException) Unwrap() error { return e.Cause }
