package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/sessionstore"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of sessionstore",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sessionstore version %s\n", strings.TrimSpace(sessionstore.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
