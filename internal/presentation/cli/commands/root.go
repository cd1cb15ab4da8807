// Package commands implements the CLI commands for rasco.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/rasco/internal/infrastructure/config"
	"github.com/jbctechsolutions/rasco/internal/infrastructure/logging"
	"github.com/jbctechsolutions/rasco/internal/infrastructure/tracing"
	"github.com/jbctechsolutions/rasco/internal/presentation/cli/output"
)

// Version information - set at build time via ldflags.
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// GlobalFlags holds the global CLI flags.
type GlobalFlags struct {
	ConfigFile string
	Output     string
	Verbose    bool
}

// AppContext holds the runtime dependencies shared by every command.
type AppContext struct {
	Config    *config.Config
	Formatter *output.Formatter
	Logger    *logging.Logger
	Tracer    *tracing.Tracer
	Flags     *GlobalFlags
}

var (
	globalFlags GlobalFlags
	appCtx      *AppContext
	appCtxMu    sync.RWMutex
)

// NewRootCmd creates the root command for the rasco CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rasco",
		Short: "Offline segment-based scheduler for recurring DAG task sets",
		Long: `rasco is an offline scheduler for recurring DAG real-time task sets on a
fixed number of CPU cores sharing partitionable last-level cache ways and
memory bandwidth.

Given a directory of GML task-graph files and per-workload WCET profiles, it
runs deadline-decomposition preprocessing followed by a segment-driven EDF
scheduling pass, producing a static hyper-period schedule and a
schedulability verdict per task set.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			return initializeApp()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigFile, "config", "c", "", "config file path (default: ~/.rasco/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.Output, "output", "o", "text", "output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(NewVersionCmd())
	rootCmd.AddCommand(NewListCmd())
	rootCmd.AddCommand(NewRunCmd())

	return rootCmd
}

// initializeApp loads configuration and initializes the logger/tracer shared
// by every non-help command.
func initializeApp() error {
	format := output.FormatText
	if globalFlags.Output == "json" {
		format = output.FormatJSON
	}

	formatter := output.NewFormatter(
		output.WithFormat(format),
		output.WithColor(format != output.FormatJSON && output.IsColorSupported()),
	)

	cfg, err := loadConfig(globalFlags.ConfigFile)
	if err != nil {
		if globalFlags.Verbose {
			formatter.Warning("Could not load config: %v, using defaults", err)
		}
		cfg = config.NewDefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:  logging.Level(cfg.Logging.Level),
		Format: logging.Format(cfg.Logging.Format),
		Output: os.Stderr,
	})

	tracer, err := tracing.New(context.Background(), tracing.Config{
		Enabled:      cfg.Observability.Tracing.Enabled,
		ExporterType: tracing.ExporterType(cfg.Observability.Tracing.ExporterType),
		OTLPEndpoint: cfg.Observability.Tracing.OTLPEndpoint,
		ServiceName:  cfg.Observability.Tracing.ServiceName,
		SampleRate:   cfg.Observability.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}

	appCtxMu.Lock()
	appCtx = &AppContext{
		Config:    cfg,
		Formatter: formatter,
		Logger:    logger,
		Tracer:    tracer,
		Flags:     &globalFlags,
	}
	appCtxMu.Unlock()

	return nil
}

// loadConfig loads configuration from the specified file or default location.
func loadConfig(configPath string) (*config.Config, error) {
	loader, err := config.NewLoader("")
	if err != nil {
		return nil, fmt.Errorf("failed to create config loader: %w", err)
	}

	return loader.Load(configPath)
}

// GetAppContext returns the current application context, or nil if the app
// hasn't been initialized.
func GetAppContext() *AppContext {
	appCtxMu.RLock()
	defer appCtxMu.RUnlock()
	return appCtx
}

// GetFormatter returns the output formatter, defaulting to a bare text
// formatter if the app hasn't been initialized.
func GetFormatter() *output.Formatter {
	appCtxMu.RLock()
	ctx := appCtx
	appCtxMu.RUnlock()

	if ctx != nil {
		return ctx.Formatter
	}
	return output.NewFormatter()
}

// Execute runs the root command with graceful shutdown on SIGINT/SIGTERM.
// A driver sweep already in flight is not cancelled cooperatively beyond the
// worker pool's own context, matching the fail-fast-only cancellation model.
func Execute() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		rootCmd := NewRootCmd()
		errChan <- rootCmd.Execute()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			GetFormatter().Error("%s", err.Error())
			os.Exit(1)
		}
	case sig := <-sigChan:
		GetFormatter().Warning("Received signal %v, shutting down...", sig)
		os.Exit(130)
	}
}
