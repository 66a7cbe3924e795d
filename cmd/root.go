package cmd

import (
	"fmt"
	"os"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opskit/redeploy/constants"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "redeploy",
	Short: "Pull the latest source and rebuild the service containers",
	Long: `
	Redeploy runs in two modes:

	1. as a cli command (redeploy deploy) that syncs a working copy and rebuilds its compose services
	2. as an agent (redeploy agent) that does the same on every github push to the tracked branch
	`,
	Version: constants.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.redeploy.yaml)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.SetConfigName(".redeploy")
	}

	viper.AutomaticEnv()
	viper.BindEnv(constants.SecretEnvVar)
	viper.BindEnv(constants.TokenEnvVar)
	viper.BindEnv(constants.DirEnvVar)
	viper.BindEnv(constants.RemoteEnvVar)
	viper.BindEnv(constants.BranchEnvVar)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

// run parameters shared by the deploy and agent commands
var (
	dir          string
	remote       string
	branch       string
	timeout      time.Duration
	composeFile  string
	composeBin   string
	verify       bool
	skipValidate bool
	noLock       bool
)

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&dir, "dir", "", "Working copy of the service repository")
	cmd.Flags().StringVar(&remote, "remote", "origin", "Git remote to sync from")
	cmd.Flags().StringVar(&branch, "branch", "main", "Branch to sync")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-phase timeout (0 disables)")
	cmd.Flags().StringVar(&composeFile, "compose-file", "", "Compose file (default is the compose tool's own lookup)")
	cmd.Flags().StringVar(&composeBin, "compose-bin", "", "Compose invocation: 'docker' for the plugin, 'docker-compose' for the standalone binary")
	cmd.Flags().BoolVar(&verify, "verify", false, "After the rebuild, wait for containers to be running and healthy")
	cmd.Flags().BoolVar(&skipValidate, "skip-validate", false, "Do not parse the compose file before rebuilding")
	cmd.Flags().BoolVar(&noLock, "no-lock", false, "Do not take the per-directory lock")
}

// applyRunDefaults fills unset run parameters from the environment/config,
// so flags win over REDEPLOY_* variables which win over the config file.
func applyRunDefaults(cmd *cobra.Command) {
	if !cmd.Flags().Changed("dir") && viper.IsSet(constants.DirEnvVar) {
		dir = viper.GetString(constants.DirEnvVar)
	}
	if !cmd.Flags().Changed("remote") && viper.IsSet(constants.RemoteEnvVar) {
		remote = viper.GetString(constants.RemoteEnvVar)
	}
	if !cmd.Flags().Changed("branch") && viper.IsSet(constants.BranchEnvVar) {
		branch = viper.GetString(constants.BranchEnvVar)
	}
}
