package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information (set by GoReleaser at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

// VersionInfo is the CLI's own build provenance, printed by `oocana version`.
type VersionInfo struct {
	Version   string
	Commit    string
	Date      string
	BuiltBy   string
	GoVersion string
}

// GetVersion returns the version information.
func GetVersion() VersionInfo {
	return VersionInfo{
		Version:   version,
		Commit:    commit,
		Date:      date,
		BuiltBy:   builtBy,
		GoVersion: runtime.Version(),
	}
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("oocana %s\nCommit: %s\nBuilt: %s by %s\nGo: %s",
		v.Version, v.Commit, v.Date, v.BuiltBy, v.GoVersion)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the oocana CLI version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(GetVersion())
		return nil
	},
}
