package cli

import (
	"github.com/spf13/cobra"
)

var instrumentsCmd = &cobra.Command{
	Use:   "instruments",
	Short: "List the perpetual contracts that would be monitored",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Instruments(cmd.Context(), cmd.OutOrStdout())
	},
}
