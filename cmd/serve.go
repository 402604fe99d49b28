package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tkeffer/weewx-xaggs/internal/api"
	"github.com/tkeffer/weewx-xaggs/internal/config"
	"github.com/tkeffer/weewx-xaggs/internal/metrics"
	"github.com/tkeffer/weewx-xaggs/internal/store"
	"github.com/tkeffer/weewx-xaggs/internal/xaggs"
	"github.com/tkeffer/weewx-xaggs/internal/xtypes"
)

var (
	listenAddr      string
	storageDriver   string
	refreshInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the xaggsd API server (default command)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().StringVar(&storageDriver, "storage-driver", "", "storage driver (overrides config)")
	serveCmd.Flags().DurationVar(&refreshInterval, "refresh-interval", 5*time.Minute, "how often to reload the archive time range")
	rootCmd.AddCommand(serveCmd)

	// Make serve the default command.
	rootCmd.RunE = runServe
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(func(c *config.Config) {
		if listenAddr != "" {
			c.ListenAddr = listenAddr
		}
		if storageDriver != "" {
			c.Storage.Driver = storageDriver
		}
	})
	if err != nil {
		return err
	}

	slog.Info("starting xaggsd",
		"version", Version,
		"listen_addr", cfg.ListenAddr,
		"storage_driver", cfg.Storage.Driver,
		"table_prefix", cfg.Storage.TablePrefix,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.NewCollector(prometheus.DefaultRegisterer)

	s, err := openStore(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	slog.Info("database ready", "driver", cfg.Storage.Driver)

	resolver, err := newResolver(cfg)
	if err != nil {
		return err
	}
	reg := xtypes.NewRegistry(m)
	svc, err := xaggs.NewService(reg, resolver, slog.Default())
	if err != nil {
		return err
	}
	svc.Start()
	defer svc.Stop()

	srv := api.NewServer(reg, s, m, prometheus.DefaultGatherer, slog.Default())
	srv.SetVersion(Version)
	srv.SetStorageDriver(cfg.Storage.Driver)

	slog.Info("xaggsd ready", "addr", cfg.ListenAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx, cfg.ListenAddr) })
	g.Go(func() error { return refreshMetadata(gctx, s, refreshInterval) })

	waitErr := g.Wait()
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		slog.Error("xaggsd exited with error", "error", waitErr)
	}

	// Always run graceful cleanup, even on error.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)

	slog.Info("xaggsd shutdown complete")
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return waitErr
	}
	return nil
}

// refreshMetadata reloads the archive range so newly archived days become
// valid spans. Failures are logged and retried on the next tick.
func refreshMetadata(ctx context.Context, s *store.SQLStore, every time.Duration) error {
	if every <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("refreshing archive metadata", "error", err)
			}
		}
	}
}
