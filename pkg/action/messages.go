package action

// TerminateJobRequest asks whichever compute service owns JobID to kill
// every running executor for that job's actions and mark those actions
// Killed with cause JobKilled.
type TerminateJobRequest struct {
	JobID string
}
