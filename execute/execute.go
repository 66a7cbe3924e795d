// Package execute runs external commands and captures their outcome so the
// sync and rebuild steps can be substituted with test doubles.
package execute

import (
	"bytes"
	"context"
	"os"
	"os/exec"

	log "github.com/sirupsen/logrus"
)

// Result is the captured outcome of one external command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes a command with args in workingDir and captures its output.
// Implementations must return a non-nil error for any non-zero exit, with the
// exit code preserved in the Result.
type Runner interface {
	Run(ctx context.Context, workingDir, name string, args ...string) (Result, error)
}

// ExecRunner runs commands with os/exec. The working directory is set on the
// command rather than the process, so concurrent runs never share state.
type ExecRunner struct{}

// Run executes name (in the specified workingDir) with args
// and returns the captured stdout and stderr
func (ExecRunner) Run(ctx context.Context, workingDir, name string, args ...string) (res Result, err error) {
	log.WithField("dir", workingDir).Info(name, " ", args)
	cmd := exec.CommandContext(ctx, name, args...)
	// Prevent wrapped tools from prompting for credentials interactively.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	cmd.Dir = workingDir
	var o, e bytes.Buffer
	cmd.Stdout = &o
	cmd.Stderr = &e
	err = cmd.Run()
	res.Stdout = o.String()
	res.Stderr = e.String()
	if err != nil {
		res.ExitCode = exitCode(err)
		// The context deadline wins over the process error: a killed process
		// reports -1, which would otherwise mask the cancellation.
		if ctx.Err() != nil {
			err = ctx.Err()
		}
	}
	return
}

func exitCode(err error) int {
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}
