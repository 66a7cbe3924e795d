// Package deployer sequences a deployment run: sync the working copy,
// rebuild the containers, optionally verify they came up. Fail-fast, no
// rollback; a failed rebuild leaves the source synced and the containers
// unchanged.
package deployer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/opskit/redeploy/compose"
	"github.com/opskit/redeploy/execute"
	"github.com/opskit/redeploy/git"
	"github.com/opskit/redeploy/model"
)

// Verifier checks that the rebuilt compose project is up. See docker.Verifier.
type Verifier interface {
	Verify(ctx context.Context, project string) error
}

// Config describes one deployment run.
type Config struct {
	// Dir is the working copy of the service repository
	Dir string
	// Remote and Branch identify the source to sync
	Remote string
	Branch string
	// Timeout bounds each phase separately; 0 means no deadline
	Timeout time.Duration
	// ComposeFile overrides the compose file; empty uses the tool default
	ComposeFile string
	// ComposeCommand overrides the compose invocation
	ComposeCommand compose.Command
	// Validate parses the compose file before invoking the toolchain
	Validate bool
	// SkipLock disables the per-directory lock file
	SkipLock bool
}

// Deployer runs deployments through a Runner so the external steps can be
// substituted in tests.
type Deployer struct {
	runner   execute.Runner
	verifier Verifier
}

// New returns a Deployer using r for external commands. verifier may be nil,
// in which case "up" means the rebuild exited 0 and the verify phase is
// skipped.
func New(r execute.Runner, verifier Verifier) *Deployer {
	return &Deployer{runner: r, verifier: verifier}
}

// Run executes a deployment run against cfg.Dir. The returned Run always
// reflects how far the run got, including on error.
func (d *Deployer) Run(ctx context.Context, cfg Config) (*model.Run, error) {
	run := model.NewRun(cfg.Dir, cfg.Remote, cfg.Branch)
	defer func() { run.Finished = time.Now() }()

	info, err := os.Stat(cfg.Dir)
	if err != nil || !info.IsDir() {
		run.Sync = model.StatusSkipped
		run.Rebuild = model.StatusSkipped
		run.Verify = model.StatusSkipped
		return run, fmt.Errorf("%w: %s", ErrDirectoryNotFound, cfg.Dir)
	}

	if !cfg.SkipLock {
		l, err := acquire(cfg.Dir)
		if err != nil {
			run.Sync = model.StatusSkipped
			run.Rebuild = model.StatusSkipped
			run.Verify = model.StatusSkipped
			return run, err
		}
		defer l.release()
	}

	log.WithFields(log.Fields{
		"dir":    cfg.Dir,
		"remote": cfg.Remote,
		"branch": cfg.Branch,
	}).Info("deployment started")

	err = d.sync(ctx, cfg, run)
	if err != nil {
		run.Rebuild = model.StatusSkipped
		run.Verify = model.StatusSkipped
		return run, err
	}

	err = d.rebuild(ctx, cfg, run)
	if err != nil {
		run.Verify = model.StatusSkipped
		return run, err
	}

	err = d.verify(ctx, cfg, run)
	if err != nil {
		return run, err
	}

	log.WithField("revision", run.Revision).Info("deployment succeeded")
	return run, nil
}

func (d *Deployer) sync(ctx context.Context, cfg Config, run *model.Run) error {
	ctx, cancel := phaseCtx(ctx, cfg.Timeout)
	defer cancel()

	res, err := git.Sync(ctx, d.runner, cfg.Dir, cfg.Remote, cfg.Branch)
	if err != nil {
		run.Sync = model.StatusFailed
		return phaseErr(PhaseSync, ErrSyncFailed, res.ExitCode, res.Stderr, err)
	}
	run.Sync = model.StatusOK

	// HEAD is reported for diagnostics only; a failure here does not fail
	// the run.
	if sha, err := git.Revision(ctx, d.runner, cfg.Dir); err == nil {
		run.Revision = sha
	} else {
		log.WithError(err).Warn("cannot resolve synced revision")
	}
	return nil
}

func (d *Deployer) rebuild(ctx context.Context, cfg Config, run *model.Run) error {
	ctx, cancel := phaseCtx(ctx, cfg.Timeout)
	defer cancel()

	if cfg.Validate {
		file := cfg.ComposeFile
		if file == "" {
			file = compose.FindFile(cfg.Dir)
		}
		if file != "" {
			if err := compose.ValidateFile(file); err != nil {
				run.Rebuild = model.StatusFailed
				return phaseErr(PhaseRebuild, ErrRebuildFailed, -1, "", err)
			}
		}
	}

	res, err := compose.Rebuild(ctx, d.runner, cfg.ComposeCommand, cfg.Dir, cfg.ComposeFile)
	if err != nil {
		run.Rebuild = model.StatusFailed
		return phaseErr(PhaseRebuild, ErrRebuildFailed, res.ExitCode, res.Stderr, err)
	}
	run.Rebuild = model.StatusOK
	return nil
}

func (d *Deployer) verify(ctx context.Context, cfg Config, run *model.Run) error {
	if d.verifier == nil {
		run.Verify = model.StatusSkipped
		return nil
	}

	ctx, cancel := phaseCtx(ctx, cfg.Timeout)
	defer cancel()

	project := compose.ProjectName(cfg.Dir)
	if err := d.verifier.Verify(ctx, project); err != nil {
		run.Verify = model.StatusFailed
		return fmt.Errorf("%w: %v", ErrVerifyFailed, err)
	}
	run.Verify = model.StatusOK
	return nil
}

// phaseErr builds the PhaseError for a failed phase. A phase killed by its
// deadline surfaces as Cancelled rather than as a tool failure.
func phaseErr(phase Phase, sentinel error, exitCode int, stderr string, cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) || errors.Is(cause, context.Canceled) {
		sentinel = ErrCancelled
	}
	return &PhaseError{
		Phase:    phase,
		ExitCode: exitCode,
		Stderr:   stderr,
		Err:      fmt.Errorf("%w: %v", sentinel, cause),
	}
}

func phaseCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
