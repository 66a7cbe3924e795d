// Package compose wraps the compose CLI for the rebuild phase and validates
// compose files before the toolchain is invoked.
package compose

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/opskit/redeploy/execute"
)

// Command is the compose invocation to use. The v2 plugin form is the
// default; older hosts can configure the standalone binary instead.
type Command []string

// DefaultCommand invokes the docker compose plugin.
var DefaultCommand = Command{"docker", "compose"}

// StandaloneCommand invokes the legacy docker-compose binary.
var StandaloneCommand = Command{"docker-compose"}

// Rebuild rebuilds and restarts the services defined in dir, detached.
// file overrides the compose file; empty means the tool's own default.
func Rebuild(ctx context.Context, r execute.Runner, cmd Command, dir, file string) (execute.Result, error) {
	if len(cmd) == 0 {
		cmd = DefaultCommand
	}
	args := append([]string{}, cmd[1:]...)
	if file != "" {
		args = append(args, "-f", file)
	}
	args = append(args, "up", "--build", "-d")
	res, err := r.Run(ctx, dir, cmd[0], args...)
	if err != nil {
		return res, fmt.Errorf("%s %s: %w", cmd[0], strings.Join(args, " "), err)
	}
	return res, nil
}

var projectNameInvalid = regexp.MustCompile(`[^a-z0-9_-]`)

// ProjectName returns the compose project name for dir, the same way compose
// derives it when none is configured: the directory basename, lowercased,
// with unsupported characters stripped.
func ProjectName(dir string) string {
	name := strings.ToLower(filepath.Base(filepath.Clean(dir)))
	name = projectNameInvalid.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, "_-")
	return name
}
