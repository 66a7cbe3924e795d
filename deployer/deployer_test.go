package deployer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opskit/redeploy/compose"
	"github.com/opskit/redeploy/constants"
	"github.com/opskit/redeploy/execute"
	"github.com/opskit/redeploy/model"
)

const headSHA = "41e8650995eb1e7832f7d88b4b5a2e1e0dd8ef0b"

// fakeRunner scripts the external commands of a run. Keys are the git
// subcommand or the binary name ("docker" for the rebuild).
type fakeRunner struct {
	calls   [][]string
	results map[string]execute.Result
	errs    map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		results: map[string]execute.Result{
			"rev-parse": {Stdout: headSHA + "\n"},
		},
		errs: map[string]error{},
	}
}

func (f *fakeRunner) key(name string, args ...string) string {
	if name == "git" && len(args) > 0 {
		return args[0]
	}
	return name
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) (execute.Result, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	k := f.key(name, args...)
	return f.results[k], f.errs[k]
}

func (f *fakeRunner) commands() (cmds []string) {
	for _, c := range f.calls {
		cmds = append(cmds, f.key(c[0], c[1:]...))
	}
	return
}

func testConfig(dir string) Config {
	return Config{Dir: dir, Remote: "origin", Branch: "main"}
}

func TestRun_Success(t *testing.T) {
	r := newFakeRunner()
	d := New(r, nil)

	run, err := d.Run(context.Background(), testConfig(t.TempDir()))
	require.NoError(t, err)

	assert.Equal(t, model.StatusOK, run.Sync)
	assert.Equal(t, model.StatusOK, run.Rebuild)
	assert.Equal(t, model.StatusSkipped, run.Verify)
	assert.Equal(t, headSHA, run.Revision)
	assert.True(t, run.Succeeded())
	assert.Equal(t, constants.ExitSuccess, ExitCode(err))
	assert.Equal(t, []string{"fetch", "merge", "rev-parse", "docker"}, r.commands())
}

func TestRun_DirectoryNotFound(t *testing.T) {
	r := newFakeRunner()
	d := New(r, nil)

	run, err := d.Run(context.Background(), testConfig("/does/not/exist"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDirectoryNotFound)
	assert.Equal(t, constants.ExitBadDirectory, ExitCode(err))

	// fails before any network or container call is attempted
	assert.Empty(t, r.calls)
	assert.Equal(t, model.StatusSkipped, run.Sync)
	assert.Equal(t, model.StatusSkipped, run.Rebuild)
}

func TestRun_FileIsNotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	d := New(newFakeRunner(), nil)
	_, err := d.Run(context.Background(), testConfig(file))
	assert.ErrorIs(t, err, ErrDirectoryNotFound)
}

func TestRun_SyncFailure(t *testing.T) {
	r := newFakeRunner()
	r.results["fetch"] = execute.Result{ExitCode: 1, Stderr: "fatal: unable to access remote"}
	r.errs["fetch"] = errors.New("exit status 1")
	d := New(r, nil)

	run, err := d.Run(context.Background(), testConfig(t.TempDir()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSyncFailed)
	assert.Equal(t, constants.ExitSyncFailed, ExitCode(err))

	var pe *PhaseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, PhaseSync, pe.Phase)
	assert.Equal(t, 1, pe.ExitCode)
	assert.Contains(t, pe.Stderr, "unable to access remote")

	// rebuild is never invoked
	assert.Equal(t, []string{"fetch"}, r.commands())
	assert.Equal(t, model.StatusFailed, run.Sync)
	assert.Equal(t, model.StatusSkipped, run.Rebuild)
	assert.Equal(t, model.StatusSkipped, run.Verify)
}

func TestRun_RebuildFailure(t *testing.T) {
	r := newFakeRunner()
	r.results["docker"] = execute.Result{ExitCode: 17, Stderr: "failed to solve: base image not found"}
	r.errs["docker"] = errors.New("exit status 17")
	d := New(r, nil)

	run, err := d.Run(context.Background(), testConfig(t.TempDir()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRebuildFailed)
	assert.Equal(t, constants.ExitRebuildFailed, ExitCode(err))

	var pe *PhaseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, PhaseRebuild, pe.Phase)
	assert.Equal(t, 17, pe.ExitCode)

	// the source stays at the newly synced revision, no rollback
	assert.Equal(t, model.StatusOK, run.Sync)
	assert.Equal(t, headSHA, run.Revision)
	assert.Equal(t, model.StatusFailed, run.Rebuild)
}

func TestRun_Idempotent(t *testing.T) {
	dir := t.TempDir()
	r := newFakeRunner()
	d := New(r, nil)

	for i := 0; i < 2; i++ {
		run, err := d.Run(context.Background(), testConfig(dir))
		require.NoError(t, err, "run %d", i)
		assert.True(t, run.Succeeded(), "run %d", i)
	}

	// the lock file does not survive a run
	_, err := os.Stat(filepath.Join(dir, lockFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_LockHeld(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, lockFileName), []byte("123\n"), 0644))

	r := newFakeRunner()
	d := New(r, nil)

	_, err := d.Run(context.Background(), testConfig(dir))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.Equal(t, constants.ExitLockHeld, ExitCode(err))
	assert.Empty(t, r.calls)
}

func TestRun_SkipLock(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, lockFileName), []byte("123\n"), 0644))

	cfg := testConfig(dir)
	cfg.SkipLock = true
	d := New(newFakeRunner(), nil)

	_, err := d.Run(context.Background(), cfg)
	assert.NoError(t, err)
}

// blockingRunner blocks until the phase deadline fires, like a hung fetch.
type blockingRunner struct{}

func (blockingRunner) Run(ctx context.Context, dir, name string, args ...string) (execute.Result, error) {
	<-ctx.Done()
	return execute.Result{ExitCode: -1}, ctx.Err()
}

func TestRun_TimeoutCancels(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Timeout = 20 * time.Millisecond
	d := New(blockingRunner{}, nil)

	run, err := d.Run(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, constants.ExitCancelled, ExitCode(err))
	assert.Equal(t, model.StatusFailed, run.Sync)
}

type fakeVerifier struct {
	err     error
	project string
}

func (f *fakeVerifier) Verify(ctx context.Context, project string) error {
	f.project = project
	return f.err
}

func TestRun_VerifySuccess(t *testing.T) {
	v := &fakeVerifier{}
	d := New(newFakeRunner(), v)

	dir := t.TempDir()
	run, err := d.Run(context.Background(), testConfig(dir))
	require.NoError(t, err)
	assert.Equal(t, model.StatusOK, run.Verify)
	assert.Equal(t, compose.ProjectName(dir), v.project)
}

func TestRun_VerifyFailure(t *testing.T) {
	v := &fakeVerifier{err: fmt.Errorf("container app is restarting")}
	d := New(newFakeRunner(), v)

	run, err := d.Run(context.Background(), testConfig(t.TempDir()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVerifyFailed)
	assert.Equal(t, constants.ExitVerifyFailed, ExitCode(err))
	assert.Equal(t, model.StatusOK, run.Rebuild)
	assert.Equal(t, model.StatusFailed, run.Verify)
}

func TestRun_ValidateCatchesBadComposeFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "compose.yaml"), []byte("services: {}"), 0644))

	cfg := testConfig(dir)
	cfg.Validate = true
	r := newFakeRunner()
	d := New(r, nil)

	_, err := d.Run(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRebuildFailed)

	// the compose toolchain is never invoked
	assert.Equal(t, []string{"fetch", "merge", "rev-parse"}, r.commands())
}
