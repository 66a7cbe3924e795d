package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opskit/redeploy/agent"
	"github.com/opskit/redeploy/constants"
	"github.com/opskit/redeploy/deployer"
	"github.com/opskit/redeploy/docker"
	"github.com/opskit/redeploy/execute"
)

var (
	port   uint16
	path   string
	apiURL string
	secret string
	token  string
)

// agentCmd represents the agent command
var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run redeploy in agent mode",
	Long: `
	1.  watches for push events on a webhook
	2.  on a push to the tracked branch, syncs the working copy
	3.  rebuilds and restarts its compose services, detached
	4.  optionally reports progress as a commit status on the pushed head
`,
	PreRun: func(cmd *cobra.Command, args []string) {
		applyRunDefaults(cmd)
		if dir == "" {
			log.Fatal("--dir is required (or set REDEPLOY_DIR)")
		}
		if !viper.IsSet(constants.SecretEnvVar) {
			log.Fatalf("environment variable %s is not exported.\n", constants.SecretEnvVar)
		}
		secret = viper.GetString(constants.SecretEnvVar)
		token = viper.GetString(constants.TokenEnvVar)
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
		cfg := agent.Config{
			Port:   port,
			Path:   path,
			Secret: secret,
			Token:  token,
			APIURL: apiURL,
			Deploy: runConfig(),
		}
		if err := agent.Agent(cfg, d); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(agentCmd)
	addRunFlags(agentCmd)
	agentCmd.Flags().Uint16Var(&port, "port", 3016, "Port on which to listen for webhooks")
	agentCmd.Flags().StringVar(&path, "path", "/webhooks", "Path on which to listen for webhooks")
	agentCmd.Flags().StringVar(&apiURL, "apiURL", "https://api.github.com/", "Github API URL")
}
