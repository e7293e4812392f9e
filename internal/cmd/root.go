// Package cmd wires the bucketd CLI: the public browsing server and the
// folder statistics builder.
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/3leaps/bucketd/internal/observability"
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata injected via ldflags.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate)
}

var (
	cfgFile    string
	logLevel   string
	logProfile string
)

var rootCmd = &cobra.Command{
	Use:   "bucketd",
	Short: "Read-only HTTP front end for a public object-storage bucket",
	Long: `bucketd serves folder-style browsing of an object-storage bucket:
prefix listings with precomputed folder statistics, inline JSON viewing,
and downloads via time-limited signed URLs.

The statistics snapshot is built out-of-band with "bucketd stats build"
and reloaded by the server on SIGHUP without dropping requests.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return observability.Init(observability.Config{
			Level:   logLevel,
			Profile: logProfile,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./bucketd.yaml, /etc/bucketd)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logProfile, "log-profile", observability.ProfileCLI, "log profile (STRUCTURED, CLI)")
}

// ExecuteContext runs the CLI with ctx governing command lifetimes.
func ExecuteContext(ctx context.Context) error {
	defer observability.Sync()
	return rootCmd.ExecuteContext(ctx)
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return fmt.Errorf("%s: %w (exit code %d)", message, err, code)
}

// ExitCode extracts the exit code embedded by exitError, defaulting to 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	msg := err.Error()
	idx := strings.LastIndex(msg, "(exit code ")
	if idx < 0 {
		return 1
	}
	var code int
	if _, scanErr := fmt.Sscanf(msg[idx:], "(exit code %d)", &code); scanErr != nil {
		return 1
	}
	return code
}
