package cmd

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opskit/redeploy/compose"
	"github.com/opskit/redeploy/deployer"
	"github.com/opskit/redeploy/docker"
	"github.com/opskit/redeploy/execute"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Sync the working copy and rebuild its compose services",
	Long: `
Run one deployment against a working copy:

1. fetches and fast-forwards the tracked branch from the named remote
2. rebuilds and restarts the compose services, detached
3. optionally waits for the containers to report running/healthy
	`,
	Example: `redeploy deploy --dir /srv/app --remote origin --branch main`,
	PreRun: func(cmd *cobra.Command, args []string) {
		applyRunDefaults(cmd)
		if dir == "" {
			log.Fatal("--dir is required (or set REDEPLOY_DIR)")
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		var verifier deployer.Verifier
		if verify {
			v, err := docker.NewVerifier("")
			if err != nil {
				log.WithError(err).Fatal("cannot create docker client")
			}
			defer v.Close()
			verifier = v
		}

		d := deployer.New(execute.ExecRunner{}, verifier)
		_, err := d.Run(context.Background(), runConfig())
		if err != nil {
			log.WithError(err).Error("deployment failed")
			os.Exit(deployer.ExitCode(err))
		}
	},
}

func runConfig() deployer.Config {
	var cmd compose.Command
	switch composeBin {
	case "", "docker":
		cmd = compose.DefaultCommand
	case "docker-compose":
		cmd = compose.StandaloneCommand
	default:
		cmd = compose.Command{composeBin}
	}
	return deployer.Config{
		Dir:            dir,
		Remote:         remote,
		Branch:         branch,
		Timeout:        timeout,
		ComposeFile:    composeFile,
		ComposeCommand: cmd,
		Validate:       !skipValidate,
		SkipLock:       noLock,
	}
}

func init() {
	rootCmd.AddCommand(deployCmd)
	addRunFlags(deployCmd)
}
