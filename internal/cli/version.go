package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"oi-surge-alerts/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "oisurge %s\n", version.String())
		fmt.Fprintf(out, "commit: %s\nbuilt: %s\ngo: %s %s/%s\n", version.Commit, version.BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
