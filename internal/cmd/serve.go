package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/bucketd/internal/config"
	"github.com/3leaps/bucketd/internal/monitoring"
	"github.com/3leaps/bucketd/internal/observability"
	"github.com/3leaps/bucketd/internal/server"
	"github.com/3leaps/bucketd/internal/server/handlers"
	"github.com/3leaps/bucketd/pkg/browse"
	"github.com/3leaps/bucketd/pkg/folderstats"
	"github.com/3leaps/bucketd/pkg/provider"
	s3provider "github.com/3leaps/bucketd/pkg/provider/s3"
)

var (
	serveHost         string
	servePort         int
	serveBucket       string
	serveSnapshotPath string
	servePIDFile      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the public browsing server",
	Long: `Serve read-only browsing of the configured bucket.

The server reloads the folder statistics snapshot on SIGHUP. With
server.pid_file set, "bucketd stats build --reload-pidfile" signals the
running server automatically after publishing.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	serveCmd.Flags().StringVar(&serveBucket, "bucket", "", "bucket name (overrides config)")
	serveCmd.Flags().StringVar(&serveSnapshotPath, "snapshot", "", "folder statistics snapshot path (overrides config)")
	serveCmd.Flags().StringVar(&servePIDFile, "pid-file", "", "write process ID to this file (overrides config)")
}

func serveOverrides() map[string]any {
	overrides := map[string]any{}

	srv := map[string]any{}
	if serveHost != "" {
		srv["host"] = serveHost
	}
	if servePort != 0 {
		srv["port"] = servePort
	}
	if servePIDFile != "" {
		srv["pid_file"] = servePIDFile
	}
	if len(srv) > 0 {
		overrides["server"] = srv
	}

	if serveBucket != "" {
		overrides["store"] = map[string]any{"bucket": serveBucket}
	}
	if serveSnapshotPath != "" {
		overrides["stats"] = map[string]any{"snapshot_path": serveSnapshotPath}
	}
	return overrides
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.LoadFile(ctx, cfgFile, serveOverrides())
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	// Re-init logging with the configured serving profile.
	if err := observability.Init(observability.Config{
		Level:   cfg.Logging.Level,
		Profile: cfg.Logging.Profile,
	}); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid logging configuration", err)
	}

	prov, err := s3provider.New(ctx, s3provider.Config{
		Bucket:         cfg.Store.Bucket,
		Region:         cfg.Store.Region,
		Endpoint:       cfg.Store.Endpoint,
		Profile:        cfg.Store.Profile,
		ForcePathStyle: cfg.Store.ForcePathStyle,
	})
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to object store", err)
	}
	defer func() { _ = prov.Close() }()

	var statsStore *folderstats.Store
	if cfg.Stats.SnapshotPath != "" {
		statsStore = folderstats.NewStore(cfg.Stats.SnapshotPath)
		if err := reloadSnapshot(statsStore); err != nil {
			// Startup proceeds without aggregates; the builder publishes
			// and signals later.
			observability.Logger.Warn("statistics snapshot not loaded",
				zap.String("path", cfg.Stats.SnapshotPath),
				zap.Error(err),
			)
		}
	}

	browseHandler := buildBrowseHandler(prov, statsStore, cfg)
	registerHealthCheckers(prov, statsStore)

	var reload handlers.ReloadFunc
	if statsStore != nil {
		reload = func() error { return reloadSnapshot(statsStore) }
	}

	srv := server.New(cfg.Server.Host, cfg.Server.Port, server.Options{
		Browse: browseHandler,
		Version: handlers.VersionInfo{
			Version:   versionInfo.Version,
			Commit:    versionInfo.Commit,
			BuildDate: versionInfo.BuildDate,
		},
		Reload:        reload,
		ReloadToken:   cfg.Admin.ReloadToken,
		HealthEnabled: cfg.Health.Enabled,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		IdleTimeout:   cfg.Server.IdleTimeout,
	})

	if cfg.Server.PIDFile != "" {
		if err := writePIDFile(cfg.Server.PIDFile); err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to write pid file", err)
		}
		defer func() { _ = os.Remove(cfg.Server.PIDFile) }()
	}

	var monSrv *monitoring.Server
	if cfg.Metrics.Enabled {
		monSrv = monitoring.NewServer(cfg.Metrics.Port, nil)
		go func() {
			if err := monSrv.Start(); err != nil {
				observability.Logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	if statsStore != nil {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go func() {
			for range hup {
				if err := reloadSnapshot(statsStore); err != nil {
					observability.Logger.Error("snapshot reload failed",
						zap.String("trigger", "sighup"),
						zap.Error(err),
					)
					continue
				}
				observability.Logger.Info("snapshot reloaded", zap.String("trigger", "sighup"))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	observability.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		observability.Logger.Error("shutdown incomplete", zap.Error(err))
	}
	if monSrv != nil {
		_ = monSrv.Shutdown(shutdownCtx)
	}
	return nil
}

func buildBrowseHandler(prov *s3provider.Provider, statsStore *folderstats.Store, cfg *config.Config) *handlers.BrowseHandler {
	checker := browse.NewExistenceChecker(prov, cfg.Store.ExistenceTTL)

	var snapshots browse.SnapshotSource
	if statsStore != nil {
		snapshots = statsStore
	}

	return handlers.NewBrowseHandler(
		browse.NewRouter(checker),
		browse.NewLister(prov, snapshots),
		browse.NewDeliverer(prov),
	)
}

func registerHealthCheckers(prov *s3provider.Provider, statsStore *folderstats.Store) {
	manager := handlers.InitHealthManager(versionInfo.Version)
	manager.RegisterChecker("store", storeHealthChecker{prov: prov})
	if statsStore != nil {
		manager.RegisterChecker("snapshot", snapshotHealthChecker{store: statsStore})
	}
}

// reloadSnapshot swaps in the latest published snapshot and refreshes the
// snapshot gauges.
func reloadSnapshot(store *folderstats.Store) error {
	if err := store.Reload(); err != nil {
		monitoring.SnapshotReloadsTotal.WithLabelValues("error").Inc()
		return err
	}
	monitoring.SnapshotReloadsTotal.WithLabelValues("ok").Inc()

	snap := store.Current()
	monitoring.ObserveSnapshot(time.Since(snap.GeneratedAt).Seconds(), snap.Len())
	return nil
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

// storeHealthChecker probes the bucket with a one-key listing.
type storeHealthChecker struct {
	prov *s3provider.Provider
}

func (c storeHealthChecker) CheckHealth(ctx context.Context) error {
	_, err := c.prov.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{
		Delimiter: "/",
		MaxKeys:   1,
	})
	if err != nil {
		return fmt.Errorf("bucket unreachable: %w", err)
	}
	return nil
}

// snapshotHealthChecker reports whether a statistics snapshot is loaded.
type snapshotHealthChecker struct {
	store *folderstats.Store
}

func (c snapshotHealthChecker) CheckHealth(ctx context.Context) error {
	if c.store.Current() == nil {
		return fmt.Errorf("no statistics snapshot loaded from %s", c.store.Path())
	}
	return nil
}
