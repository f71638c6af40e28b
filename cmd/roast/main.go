package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/roast/internal/pipeline"
	"github.com/ajitpratap0/roast/pkg/config"
	"github.com/ajitpratap0/roast/pkg/errors"
	"github.com/ajitpratap0/roast/pkg/logger"
	"github.com/ajitpratap0/roast/pkg/metrics"
	"github.com/ajitpratap0/roast/pkg/observability"
	"github.com/ajitpratap0/roast/pkg/settings"
)

var version = "0.1.0"

// app holds what every command shares.
type app struct {
	settings    *settings.Settings
	config      *config.Config
	metrics     *metrics.Collector
	log         *zap.Logger
	configFiles []string
	logLevel    string
}

func main() {
	a := &app{settings: settings.Global()}

	root := &cobra.Command{
		Use:   "roast",
		Short: "roast - columnar dataset mapping and tabulation",
		Long: `roast applies mapper operations (copy, draw, selectors) to trees stored in
.roast containers and tabulates expressions over them as TSV, JSON or Avro.

Settings are read from -c files, ROAST_ environment variables and the
settings stored in every input.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.setup() },
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}
	root.PersistentFlags().StringArrayVarP(&a.configFiles, "config", "c", nil, "Load settings from FILE (repeatable; .roast containers, rootrc text, JSON, YAML, TOML)")
	root.PersistentFlags().StringVarP(&a.logLevel, "log-level", "l", "", "Set the logging level (debug, info, warn, error)")

	root.AddCommand(
		a.mapSingleCmd(),
		a.mapMultiCmd(),
		a.reduceCmd(),
		a.tabulateCmd(),
		a.settingsCmd(),
		a.filterMultiCmd(),
		a.entryListCmd(),
		a.selectorsCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("roast v%s\n", version)
				fmt.Printf("Go version: %s\n", runtime.Version())
				fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Get().Error("command failed",
			zap.String("kind", string(errors.TypeOf(err))),
			zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// setup loads the settings in order of increasing precedence: .env, -c
// files, environment overrides and -l. It then configures logging,
// tracing and metrics.
func (a *app) setup() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	for _, path := range a.configFiles {
		if err := config.LoadFile(a.settings, path, settings.LevelUser); err != nil {
			return err
		}
	}
	config.ApplyEnv(a.settings)
	if a.logLevel != "" {
		a.settings.Set(config.KeyLoggingLevel, a.logLevel, settings.LevelChanged)
	}

	// read from a copy so defaults are not stored before the inputs are merged
	cfg := config.FromSettings(a.settings.Snapshot())
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.config = cfg
	if err := logger.Init(cfg.Logger()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize logger")
	}
	a.log = logger.With(zap.String("component", "roast-cli"))
	if err := observability.Initialize(cfg.TracingFor(version)); err != nil {
		return err
	}
	a.metrics = metrics.NewCollector()
	a.log.Debug("settings loaded",
		zap.Strings("config_files", a.configFiles),
		zap.Int("keys", a.settings.Len()))
	return nil
}

func (a *app) teardown() error {
	if a.config == nil {
		return nil
	}
	if path := a.config.Metrics.Textfile; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			return err
		}
		a.log.Info("metrics written", zap.String("path", path))
	}
	if err := observability.Shutdown(context.Background()); err != nil {
		a.log.Warn("failed to flush traces", zap.Error(err))
	}
	_ = logger.Sync()
	return nil
}

func (a *app) pipeline(opts ...pipeline.Option) *pipeline.Pipeline {
	base := []pipeline.Option{
		pipeline.WithLogger(a.log),
		pipeline.WithMetrics(a.metrics),
	}
	return pipeline.New(a.settings, append(base, opts...)...)
}
