package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "helpdesk v%s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", GitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), "Go: %s\n", runtime.Version())
		},
	}
}
