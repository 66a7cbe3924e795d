package github

import (
	"context"

	"github.com/google/go-github/github"
	log "github.com/sirupsen/logrus"
)

// StatusUpdater posts a commit status (pending, success, error) for a ref.
type StatusUpdater func(state, desc string) error

// NewStatusUpdater returns a StatusUpdater bound to one commit, reporting
// under the given status context.
func NewStatusUpdater(ctx context.Context, client *github.Client, statusContext, owner, repo, ref string) StatusUpdater {
	return func(state, desc string) error {
		log.WithFields(log.Fields{
			"state":   state,
			"message": desc,
		}).Info("updating github status")
		status := github.RepoStatus{
			State:       &state,
			Description: &desc,
			Context:     &statusContext,
		}
		_, _, err := client.Repositories.CreateStatus(ctx, owner, repo, ref, &status)
		return err
	}
}
