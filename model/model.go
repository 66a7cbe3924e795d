package model

import "time"

// Status is the state of a single deployment phase.
type Status string

const (
	StatusPending Status = "pending"
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	// StatusSkipped marks a phase that never ran because an earlier phase failed,
	// or because it was not requested (verification is opt-in).
	StatusSkipped Status = "skipped"
)

// The Run type carries all the information about a single deployment run.
// It lives for the duration of one invocation and is never persisted.
type Run struct {
	// Dir is the working copy the run operates on
	Dir string
	// Remote is the git remote the source is synced from
	Remote string
	// Branch is the branch that is synced
	Branch string
	// Sync is the status of the source sync phase
	Sync Status
	// Rebuild is the status of the container rebuild phase
	Rebuild Status
	// Verify is the status of the post-rebuild verification phase
	Verify Status
	// Revision is the HEAD commit SHA after a successful sync
	Revision string
	// Started and Finished bound the run
	Started  time.Time
	Finished time.Time
}

// NewRun returns a Run with all phases pending.
func NewRun(dir, remote, branch string) *Run {
	return &Run{
		Dir:     dir,
		Remote:  remote,
		Branch:  branch,
		Sync:    StatusPending,
		Rebuild: StatusPending,
		Verify:  StatusPending,
		Started: time.Now(),
	}
}

// Succeeded reports whether every phase that ran completed ok.
func (r *Run) Succeeded() bool {
	if r.Sync != StatusOK || r.Rebuild != StatusOK {
		return false
	}
	return r.Verify == StatusOK || r.Verify == StatusSkipped
}
