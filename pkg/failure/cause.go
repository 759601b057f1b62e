// Package failure defines WRENCH's failure-cause taxonomy. Failures are
// values carried inside completion messages, never panics or bare errors,
// so that job/action rollup can inspect and re-attach them.
package failure

import "fmt"

// Cause is implemented by every concrete failure-cause type below.
type Cause interface {
	error
	// Kind returns the taxonomy name, stable across versions, for use in
	// logs, metrics labels, and tests that assert on failure category
	// rather than message text.
	Kind() string
}

// FileNotFound indicates a read or lookup targeted a file absent from the
// addressed location.
type FileNotFound struct {
	FileID   string
	Location string
}

func (c *FileNotFound) Kind() string { return "FileNotFound" }
func (c *FileNotFound) Error() string {
	return fmt.Sprintf("file %q not found at %q", c.FileID, c.Location)
}

// FileAlreadyBeingCopied indicates a copy request whose destination is
// already the target of an in-flight copy.
type FileAlreadyBeingCopied struct {
	FileID   string
	Src, Dst string
}

func (c *FileAlreadyBeingCopied) Kind() string { return "FileAlreadyBeingCopied" }
func (c *FileAlreadyBeingCopied) Error() string {
	return fmt.Sprintf("file %q already being copied from %q to %q", c.FileID, c.Src, c.Dst)
}

// InvalidDirectoryPath indicates an operation addressed a malformed or
// disallowed logical path on a storage service.
type InvalidDirectoryPath struct {
	Service string
	Path    string
}

func (c *InvalidDirectoryPath) Kind() string { return "InvalidDirectoryPath" }
func (c *InvalidDirectoryPath) Error() string {
	return fmt.Sprintf("invalid directory path %q on service %q", c.Path, c.Service)
}

// StorageServiceNotEnoughSpace indicates a write would exceed the target
// storage service's capacity.
type StorageServiceNotEnoughSpace struct {
	FileID  string
	Service string
}

func (c *StorageServiceNotEnoughSpace) Kind() string { return "StorageServiceNotEnoughSpace" }
func (c *StorageServiceNotEnoughSpace) Error() string {
	return fmt.Sprintf("not enough space on %q for file %q", c.Service, c.FileID)
}

// NoScratchSpace indicates a SCRATCH location could not be resolved
// because the executing job's compute service has no scratch storage.
type NoScratchSpace struct {
	Message string
}

func (c *NoScratchSpace) Kind() string  { return "NoScratchSpace" }
func (c *NoScratchSpace) Error() string { return "no scratch space: " + c.Message }

// NotEnoughResources indicates a job was rejected at admission because no
// host can satisfy some action's min_cores/min_ram.
type NotEnoughResources struct {
	JobID, ServiceID string
}

func (c *NotEnoughResources) Kind() string { return "NotEnoughResources" }
func (c *NotEnoughResources) Error() string {
	return fmt.Sprintf("service %q has insufficient resources for job %q", c.ServiceID, c.JobID)
}

// JobTypeNotSupported indicates a job kind the target service cannot run.
type JobTypeNotSupported struct {
	JobID, ServiceID string
}

func (c *JobTypeNotSupported) Kind() string { return "JobTypeNotSupported" }
func (c *JobTypeNotSupported) Error() string {
	return fmt.Sprintf("service %q does not support job %q", c.ServiceID, c.JobID)
}

// JobTimeout indicates a job's lifetime (e.g. a pilot job lease) expired
// before completion.
type JobTimeout struct {
	JobID string
}

func (c *JobTimeout) Kind() string  { return "JobTimeout" }
func (c *JobTimeout) Error() string { return fmt.Sprintf("job %q timed out", c.JobID) }

// JobKilled indicates explicit termination by the controller.
type JobKilled struct {
	JobID string
}

func (c *JobKilled) Kind() string  { return "JobKilled" }
func (c *JobKilled) Error() string { return fmt.Sprintf("job %q was killed", c.JobID) }

// ComputeThreadHasDied indicates a per-thread compute failure inside a
// parallel Compute action.
type ComputeThreadHasDied struct {
	ActionID string
}

func (c *ComputeThreadHasDied) Kind() string { return "ComputeThreadHasDied" }
func (c *ComputeThreadHasDied) Error() string {
	return fmt.Sprintf("a compute thread died for action %q", c.ActionID)
}

// ServiceIsDown indicates the targeted service has terminated.
type ServiceIsDown struct {
	ServiceID string
}

func (c *ServiceIsDown) Kind() string  { return "ServiceIsDown" }
func (c *ServiceIsDown) Error() string { return fmt.Sprintf("service %q is down", c.ServiceID) }

// ServiceIsSuspended indicates the targeted service is temporarily
// paused.
type ServiceIsSuspended struct {
	ServiceID string
}

func (c *ServiceIsSuspended) Kind() string { return "ServiceIsSuspended" }
func (c *ServiceIsSuspended) Error() string {
	return fmt.Sprintf("service %q is suspended", c.ServiceID)
}

// FunctionalityNotAvailable indicates a requested operation name is not
// implemented by the targeted service.
type FunctionalityNotAvailable struct {
	ServiceID, Name string
}

func (c *FunctionalityNotAvailable) Kind() string { return "FunctionalityNotAvailable" }
func (c *FunctionalityNotAvailable) Error() string {
	return fmt.Sprintf("%q not available on service %q", c.Name, c.ServiceID)
}

// NotAllowed indicates a request violated a service's policy (e.g. an
// unrecognized service-specific-args key).
type NotAllowed struct {
	ServiceID, Message string
}

func (c *NotAllowed) Kind() string  { return "NotAllowed" }
func (c *NotAllowed) Error() string { return fmt.Sprintf("not allowed on %q: %s", c.ServiceID, c.Message) }

// HostError indicates a host-level fault (e.g. an action was running on a
// host that died and the retry policy gave up).
type HostError struct {
	HostID string
}

func (c *HostError) Kind() string  { return "HostError" }
func (c *HostError) Error() string { return fmt.Sprintf("host %q error", c.HostID) }

// NetworkError indicates a transport-level failure; IsTimeout
// distinguishes a timed-out receive from any other transport fault.
type NetworkError struct {
	IsTimeout bool
}

func (c *NetworkError) Kind() string { return "NetworkError" }
func (c *NetworkError) Error() string {
	if c.IsTimeout {
		return "network timeout"
	}
	return "network error"
}

// FatalFailure is a catch-all for conditions that indicate a bug rather
// than an expected runtime fault.
type FatalFailure struct {
	Message string
}

func (c *FatalFailure) Kind() string  { return "FatalFailure" }
func (c *FatalFailure) Error() string { return "fatal failure: " + c.Message }

// ParentActionFailed indicates an action was never attempted because one
// of its parents did not complete — a precise cause for skipped
// downstream actions instead of a generic FatalFailure.
type ParentActionFailed struct {
	ActionID, ParentID string
}

func (c *ParentActionFailed) Kind() string { return "ParentActionFailed" }
func (c *ParentActionFailed) Error() string {
	return fmt.Sprintf("action %q not run: parent %q did not complete", c.ActionID, c.ParentID)
}

// JobManagerTerminated indicates a job was still pending when its owning
// JobManager shut down, for the same reason as ParentActionFailed.
type JobManagerTerminated struct {
	JobID string
}

func (c *JobManagerTerminated) Kind() string { return "JobManagerTerminated" }
func (c *JobManagerTerminated) Error() string {
	return fmt.Sprintf("job manager terminated with job %q still pending", c.JobID)
}
