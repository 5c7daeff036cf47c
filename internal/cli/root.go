// Package cli holds the cronwork cobra commands.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cronwork",
		Short:        "In-process recurring task scheduler",
		Long:         "cronwork runs config-declared jobs on intervals and cron expressions, with run history and an optional admin API.",
		SilenceUsage: true,
	}
	root.AddCommand(
		newRunCmd(),
		newNextCmd(),
	)
	return root
}
