package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tkeffer/weewx-xaggs/internal/config"
	"github.com/tkeffer/weewx-xaggs/internal/metrics"
	"github.com/tkeffer/weewx-xaggs/internal/store"
	"github.com/tkeffer/weewx-xaggs/internal/units"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var (
	cfgFile   string
	logFormat string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "xaggsd",
	Short: "Extended aggregates over WeeWX daily summaries",
	Long: `xaggsd computes extended aggregates from the daily summary tables of a
WeeWX archive: historical record highs and lows for a calendar day, the
times they occurred, long-term daily means, and counts of days whose
average crossed a threshold. Archives in SQLite, MySQL/MariaDB or
PostgreSQL are supported. Results are served over a JSON API or printed
by the query command.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text or json, overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, overrides config)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration, applies the logging flags and any
// command overrides, validates the result and installs the default logger.
func loadConfig(overrides ...func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	for _, apply := range overrides {
		apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: cfg.Level()}

	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// newResolver returns the standard unit tables extended with the
// configured observation groups.
func newResolver(cfg *config.Config) (*units.Resolver, error) {
	r := units.NewResolver()
	for _, og := range cfg.ObsGroups {
		if err := r.RegisterObservationType(og.ObsType, units.Group(og.Group)); err != nil {
			return nil, fmt.Errorf("obs_groups: %w", err)
		}
	}
	return r, nil
}

// openStore opens the configured archive. m may be nil.
func openStore(ctx context.Context, cfg *config.Config, m *metrics.Collector) (*store.SQLStore, error) {
	return store.Open(ctx, store.Dialect(cfg.Storage.Driver), cfg.DSN(),
		store.WithTablePrefix(cfg.Storage.TablePrefix),
		store.WithLogger(slog.Default()),
		store.WithMetrics(m),
	)
}
