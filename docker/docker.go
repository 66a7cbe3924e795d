// Package docker verifies that a rebuilt compose project is actually up,
// using the Docker API rather than trusting the compose exit code.
package docker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	log "github.com/sirupsen/logrus"
)

const composeProjectLabel = "com.docker.compose.project"

// Verifier polls the Docker daemon until every container of a compose
// project is running, and every container that declares a healthcheck
// reports healthy.
type Verifier struct {
	cli      *client.Client
	interval time.Duration
}

// NewVerifier creates a Verifier against the daemon from the environment.
// host overrides DOCKER_HOST when non-empty.
func NewVerifier(host string) (*Verifier, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Verifier{cli: cli, interval: 2 * time.Second}, nil
}

// Close releases the underlying client.
func (v *Verifier) Close() error {
	if v.cli == nil {
		return nil
	}
	return v.cli.Close()
}

// Verify blocks until the project's containers are up or ctx expires.
func (v *Verifier) Verify(ctx context.Context, project string) error {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		err := v.check(ctx, project)
		if err == nil {
			return nil
		}
		log.WithError(err).WithField("project", project).Debug("not up yet")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%v (last: %v)", ctx.Err(), err)
		case <-ticker.C:
		}
	}
}

func (v *Verifier) check(ctx context.Context, project string) error {
	f := filters.NewArgs()
	f.Add("label", composeProjectLabel+"="+project)
	containers, err := v.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: f})
	if err != nil {
		return fmt.Errorf("listing containers: %w", err)
	}
	if len(containers) == 0 {
		return fmt.Errorf("no containers for project %q", project)
	}

	for _, c := range containers {
		name := containerName(c)
		if c.State != "running" {
			return fmt.Errorf("container %s is %s", name, c.State)
		}
		resp, err := v.cli.ContainerInspect(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("inspecting %s: %w", name, err)
		}
		if resp.State != nil && resp.State.Health != nil {
			if status := resp.State.Health.Status; status != "healthy" {
				return fmt.Errorf("container %s health is %s", name, status)
			}
		}
	}
	return nil
}

func containerName(c container.Summary) string {
	if len(c.Names) > 0 {
		return strings.TrimPrefix(c.Names[0], "/")
	}
	return c.ID[:12]
}
