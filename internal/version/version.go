package version

import "fmt"

// Build metadata, set with -ldflags "-X oi-surge-alerts/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String renders the version with the short commit, e.g. "v1.2.0 (3f9a1c2)".
func String() string {
	commit := Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s (%s)", Version, commit)
}
