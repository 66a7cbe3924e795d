// Package agent runs redeploy as a bot: every push to the tracked branch
// triggers a deployment run against the configured working copy.
package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/go-playground/webhooks.v3"
	webhook "gopkg.in/go-playground/webhooks.v3/github"

	"github.com/opskit/redeploy/deployer"
	gh "github.com/opskit/redeploy/github"
)

const publicAPIURL = "https://api.github.com/"

// Config configures the webhook listener.
type Config struct {
	// Port and Path are where the webhook listens
	Port uint16
	Path string
	// Secret validates webhook signatures
	Secret string
	// Token, when set, enables commit status reporting
	Token string
	// APIURL is the github API root, for enterprise installs
	APIURL string
	// Deploy is the run configuration applied on every push
	Deploy deployer.Config
}

// Agent listens for github push webhooks and deploys on each push to the
// tracked branch. Runs against the same working copy are serialized here:
// overlapping rebuilds of one service are unsafe, so pushes that arrive
// mid-run wait for the current run to finish.
func Agent(cfg Config, d *deployer.Deployer) error {
	hook := webhook.New(&webhook.Config{Secret: cfg.Secret})
	hook.RegisterEvents(handlePush(cfg, d), webhook.PushEvent)

	log.WithFields(log.Fields{
		"port": cfg.Port,
		"path": cfg.Path,
	}).Info("agent listening")
	err := webhooks.Run(hook, ":"+strconv.FormatUint(uint64(cfg.Port), 10), cfg.Path)
	if err != nil {
		return fmt.Errorf("cannot listen for webhook: %v", err)
	}
	return nil
}

func handlePush(cfg Config, d *deployer.Deployer) func(interface{}, webhooks.Header) {
	var mu sync.Mutex
	return func(payload interface{}, header webhooks.Header) {
		pl, ok := payload.(webhook.PushPayload)
		if !ok {
			return
		}

		branch := BranchFromRef(pl.Ref)
		if branch != cfg.Deploy.Branch {
			log.WithFields(log.Fields{
				"ref":    pl.Ref,
				"branch": cfg.Deploy.Branch,
			}).Info("push ignored, not the tracked branch")
			return
		}

		mu.Lock()
		defer mu.Unlock()

		ctx := context.Background()
		update := statusUpdater(ctx, cfg, pl)

		update("pending", "deployment started")

		run, err := d.Run(ctx, cfg.Deploy)
		if err != nil {
			log.WithError(err).Error("deployment failed")
			update("error", err.Error())
			return
		}
		update("success", fmt.Sprintf("deployed %s", run.Revision))
	}
}

// statusUpdater reports deployment progress as a commit status on the pushed
// head. Without a token it degrades to a no-op so the agent works against
// repositories we cannot write to.
func statusUpdater(ctx context.Context, cfg Config, pl webhook.PushPayload) gh.StatusUpdater {
	if cfg.Token == "" {
		return func(state, desc string) error { return nil }
	}

	owner, repo, err := SplitFullName(pl.Repository.FullName)
	if err != nil {
		log.WithError(err).Warn("cannot report status")
		return func(state, desc string) error { return nil }
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = publicAPIURL
	}
	client, err := gh.NewClient(ctx, apiURL, cfg.Token)
	if err != nil {
		log.WithError(err).Warn("cannot report status")
		return func(state, desc string) error { return nil }
	}

	update := gh.NewStatusUpdater(ctx, client, "redeploy", owner, repo, pl.After)
	return func(state, desc string) error {
		err := update(state, desc)
		if err != nil {
			log.WithError(err).Warn("error updating status")
		}
		return err
	}
}

// BranchFromRef extracts the branch name from a push ref, so
// refs/heads/main yields main. Tag pushes yield "".
func BranchFromRef(ref string) string {
	const prefix = "refs/heads/"
	if !strings.HasPrefix(ref, prefix) {
		return ""
	}
	return strings.TrimPrefix(ref, prefix)
}

// SplitFullName splits an owner/repo full name.
func SplitFullName(fullName string) (owner, repo string, err error) {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		err = fmt.Errorf("cannot parse repository full name %q", fullName)
		return
	}
	return parts[0], parts[1], nil
}
