package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set by build flags)
	Version = "0.1.0"
	// GitCommit is the git commit hash (set by build flags)
	GitCommit = "unknown"
	// BuildDate is the build timestamp (set by build flags)
	BuildDate = "unknown"
)

var versionFlags struct {
	short  bool
	format string
}

// VersionInfo describes the running binary.
type VersionInfo struct {
	Version   string `json:"version" yaml:"version"`
	GitCommit string `json:"git_commit" yaml:"git_commit"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Text implements cli.Texter.
func (v VersionInfo) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ruler %s\n", v.Version)
	fmt.Fprintf(&b, "Git Commit: %s\n", v.GitCommit)
	fmt.Fprintf(&b, "Build Date: %s\n", v.BuildDate)
	fmt.Fprintf(&b, "Go Version: %s\n", v.GoVersion)
	fmt.Fprintf(&b, "OS/Arch: %s\n", v.Platform)
	return b.String()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print detailed version information including Git commit and build date.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionFlags.short {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
			return nil
		}

		_, formatter, err := newFormatter(versionFlags.format)
		if err != nil {
			return err
		}
		return formatter.FormatTo(cmd.OutOrStdout(), currentVersion())
	},
}

func currentVersion() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().BoolVarP(&versionFlags.short, "short", "s", false, "print only the version number")
	versionCmd.Flags().StringVarP(&versionFlags.format, "format", "o", "text", "output format (text, json, yaml)")
}
