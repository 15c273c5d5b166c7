package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// BuildInfo describes the binary, set by the linker through main.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

//nolint:gochecknoglobals // set once from main before Execute
var buildInfo BuildInfo

// SetBuildInfo records version details for the version command and the
// ledger client's User-Agent.
func SetBuildInfo(info BuildInfo) {
	buildInfo = info
}

// versionCmd prints build details.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Show version information",
	Long:    `Show the payflow version, commit and build date.`,
	Example: `  payflow version`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cc := GetCmdContext(cmd)
		w := cmd.OutOrStdout()
		if cc.Formatter != nil && cc.Formatter.IsJSON() {
			return writeJSON(w, map[string]string{
				"version": currentVersion(),
				"commit":  orUnknown(buildInfo.Commit),
				"date":    orUnknown(buildInfo.Date),
				"go":      runtime.Version(),
			})
		}
		out(w, "payflow %s\n", formatVersion(buildInfo))
		return nil
	},
}

// currentVersion returns the version, or "dev" for unreleased builds.
func currentVersion() string {
	if buildInfo.Version == "" {
		return "dev"
	}
	return buildInfo.Version
}

// formatVersion renders build details on one line.
func formatVersion(info BuildInfo) string {
	version := info.Version
	if version == "" {
		version = "dev"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, orUnknown(info.Commit), orUnknown(info.Date))
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	versionCmd.GroupID = groupConfig
	rootCmd.AddCommand(versionCmd)
}
