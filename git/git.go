package git

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/opskit/redeploy/execute"
)

// Sync fetches branch from remote and fast-forwards the working copy in dir.
// The merge is ff-only so a diverged working copy fails the sync instead of
// creating a merge commit nobody reviewed.
func Sync(ctx context.Context, r execute.Runner, dir, remote, branch string) (execute.Result, error) {
	res, err := r.Run(ctx, dir, "git", "fetch", remote, branch)
	if err != nil {
		return res, fmt.Errorf("git fetch %s %s: %w", remote, branch, err)
	}
	res, err = r.Run(ctx, dir, "git", "merge", "--ff-only", remote+"/"+branch)
	if err != nil {
		return res, fmt.Errorf("git merge --ff-only %s/%s: %w", remote, branch, err)
	}
	log.WithFields(log.Fields{
		"remote": remote,
		"branch": branch,
	}).Info("source synced")
	return res, nil
}

// Revision returns the SHA of HEAD in dir.
func Revision(ctx context.Context, r execute.Runner, dir string) (sha string, err error) {
	res, err := r.Run(ctx, dir, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse HEAD: %w", err)
	}
	return strings.TrimSpace(res.Stdout), nil
}
