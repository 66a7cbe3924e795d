package deployer

import (
	"errors"
	"fmt"

	"github.com/opskit/redeploy/constants"
)

// Phase names the step of a run that failed.
type Phase string

const (
	PhaseSync    Phase = "sync"
	PhaseRebuild Phase = "rebuild"
	PhaseVerify  Phase = "verify"
)

var (
	// ErrDirectoryNotFound means the target directory does not exist; nothing ran.
	ErrDirectoryNotFound = errors.New("target directory not found")
	// ErrSyncFailed means the source sync exited non-zero.
	ErrSyncFailed = errors.New("source sync failed")
	// ErrRebuildFailed means the container rebuild exited non-zero.
	ErrRebuildFailed = errors.New("container rebuild failed")
	// ErrVerifyFailed means containers did not reach running/healthy in time.
	ErrVerifyFailed = errors.New("container verification failed")
	// ErrCancelled means a phase exceeded its deadline or the run was interrupted.
	ErrCancelled = errors.New("run cancelled")
	// ErrLockHeld means another run holds the lock for the target directory.
	ErrLockHeld = errors.New("deployment already in progress")
)

// PhaseError reports which phase failed, with the wrapped tool's exit code
// and captured stderr, so a failure can be diagnosed without rerunning.
type PhaseError struct {
	Phase    Phase
	ExitCode int
	Stderr   string
	Err      error
}

func (e *PhaseError) Error() string {
	msg := fmt.Sprintf("%s phase failed (exit code %d)", e.Phase, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// ExitCode maps a run error to the process exit code contract:
// 0 success, 2 sync, 3 rebuild, 4 bad directory, 5 cancelled, 6 lock held,
// 7 verification.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return constants.ExitSuccess
	case errors.Is(err, ErrDirectoryNotFound):
		return constants.ExitBadDirectory
	case errors.Is(err, ErrLockHeld):
		return constants.ExitLockHeld
	case errors.Is(err, ErrCancelled):
		return constants.ExitCancelled
	case errors.Is(err, ErrSyncFailed):
		return constants.ExitSyncFailed
	case errors.Is(err, ErrRebuildFailed):
		return constants.ExitRebuildFailed
	case errors.Is(err, ErrVerifyFailed):
		return constants.ExitVerifyFailed
	}
	return 1
}
