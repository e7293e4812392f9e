package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/bucketd/internal/observability"
	"github.com/3leaps/bucketd/pkg/folderstats"
	s3provider "github.com/3leaps/bucketd/pkg/provider/s3"
)

var (
	buildJobFile        string
	buildBucket         string
	buildRegion         string
	buildEndpoint       string
	buildProfile        string
	buildForcePathStyle bool
	buildOut            string
	buildMaxDepth       int
	buildParallelism    int
	buildRateLimit      float64
	buildInclude        []string
	buildExclude        []string
	buildReloadPIDFile  string
)

var statsBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Walk the bucket and publish a folder statistics snapshot",
	Long: `Walk the bucket, aggregate per-prefix size, file count, and newest
modification time, and publish the result atomically.

Publication is all-or-nothing: any listing failure aborts the build and the
previously published snapshot stays authoritative. With --reload-pidfile the
running server is sent SIGHUP after a successful publish.

A job manifest (--job) pins the whole build down in one file for cron:

  bucketd stats build --job /etc/bucketd/stats-job.yaml`,
	RunE: runStatsBuild,
}

func init() {
	statsCmd.AddCommand(statsBuildCmd)

	statsBuildCmd.Flags().StringVar(&buildJobFile, "job", "", "YAML job manifest (flags below are ignored when set)")
	statsBuildCmd.Flags().StringVar(&buildBucket, "bucket", "", "bucket to walk")
	statsBuildCmd.Flags().StringVar(&buildRegion, "region", "", "bucket region")
	statsBuildCmd.Flags().StringVar(&buildEndpoint, "endpoint", "", "custom S3-compatible endpoint")
	statsBuildCmd.Flags().StringVar(&buildProfile, "profile", "", "AWS shared config profile")
	statsBuildCmd.Flags().BoolVar(&buildForcePathStyle, "force-path-style", false, "use path-style bucket addressing")
	statsBuildCmd.Flags().StringVar(&buildOut, "out", "", "snapshot output path")
	statsBuildCmd.Flags().IntVar(&buildMaxDepth, "max-depth", folderstats.DefaultMaxDepth, "maximum prefix depth to snapshot")
	statsBuildCmd.Flags().IntVar(&buildParallelism, "parallelism", folderstats.DefaultParallelism, "concurrent listing workers")
	statsBuildCmd.Flags().Float64Var(&buildRateLimit, "rate-limit", 0, "list requests per second, 0 for unlimited")
	statsBuildCmd.Flags().StringSliceVar(&buildInclude, "include", nil, "glob patterns of prefixes to include")
	statsBuildCmd.Flags().StringSliceVar(&buildExclude, "exclude", nil, "glob patterns of prefixes to exclude")
	statsBuildCmd.Flags().StringVar(&buildReloadPIDFile, "reload-pidfile", "", "send SIGHUP to the process in this pidfile after publish")
}

func buildManifest() (*folderstats.Manifest, error) {
	if buildJobFile != "" {
		return folderstats.LoadManifest(buildJobFile)
	}

	m := &folderstats.Manifest{
		Connection: folderstats.ConnectionSpec{
			Bucket:         buildBucket,
			Region:         buildRegion,
			Endpoint:       buildEndpoint,
			Profile:        buildProfile,
			ForcePathStyle: buildForcePathStyle,
		},
		Build: folderstats.BuildSpec{
			MaxDepth:    buildMaxDepth,
			Parallelism: buildParallelism,
			RateLimit:   buildRateLimit,
			Include:     buildInclude,
			Exclude:     buildExclude,
		},
		Output: folderstats.OutputSpec{
			SnapshotPath:  buildOut,
			ReloadPIDFile: buildReloadPIDFile,
		},
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func runStatsBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	m, err := buildManifest()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid build job", err)
	}

	prov, err := s3provider.New(ctx, s3provider.Config{
		Bucket:         m.Connection.Bucket,
		Region:         m.Connection.Region,
		Endpoint:       m.Connection.Endpoint,
		Profile:        m.Connection.Profile,
		ForcePathStyle: m.Connection.ForcePathStyle,
	})
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to object store", err)
	}
	defer func() { _ = prov.Close() }()

	builder, err := folderstats.NewBuilder(prov, m.Connection.Bucket, m.Build.BuildConfig(), observability.CLILogger)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid build configuration", err)
	}

	start := time.Now()
	snap, err := builder.Build(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return exitError(foundry.ExitSignalInt, "Snapshot build cancelled", err)
		}
		// Nothing was published; the previous snapshot stays live.
		return exitError(foundry.ExitExternalServiceUnavailable, "Snapshot build failed", err)
	}

	if err := snap.WriteFile(m.Output.SnapshotPath); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to publish snapshot", err)
	}

	observability.CLILogger.Info("Snapshot published",
		zap.String("path", m.Output.SnapshotPath),
		zap.Int("prefixes", snap.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)

	if m.Output.ReloadPIDFile != "" {
		if err := signalReload(m.Output.ReloadPIDFile); err != nil {
			// The snapshot is published either way; the server picks it up
			// on its next reload.
			observability.CLILogger.Warn("Failed to signal server reload",
				zap.String("pidfile", m.Output.ReloadPIDFile),
				zap.Error(err),
			)
		} else {
			observability.CLILogger.Info("Server signaled to reload",
				zap.String("pidfile", m.Output.ReloadPIDFile),
			)
		}
	}
	return nil
}

// signalReload sends SIGHUP to the process recorded in the pidfile.
func signalReload(pidfile string) error {
	data, err := os.ReadFile(pidfile)
	if err != nil {
		return fmt.Errorf("read pidfile: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("parse pidfile %s: %w", pidfile, err)
	}
	if err := syscall.Kill(pid, syscall.SIGHUP); err != nil {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	return nil
}
