package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opskit/redeploy/constants"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version of the redeploy command",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("redeploy version %s\n", constants.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
