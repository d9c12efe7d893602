package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yairfalse/ephemera/internal/command"
	"github.com/yairfalse/ephemera/internal/config"
	"github.com/yairfalse/ephemera/internal/telemetry"
)

var (
	version = "0.1.0"

	configPath string
	debug      bool
	logFormat  string

	app = &appContext{runner: command.Exec{}}

	rootCmd = &cobra.Command{
		Use:   "ephemera",
		Short: "Preview environment janitor",
		Long: `Ephemera - Preview Environment Janitor

Ephemera finds the containers, volumes and networks left behind by
per-pull-request preview environments, decides which ones are stale,
and reclaims them. It also drives the Terraform stack behind each
preview and renders provisioning trends.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
)

// Execute runs the root command
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`Ephemera {{.Version}} - Preview Environment Janitor
`)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./"+config.DefaultPath+" when present)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console or json (overrides config)")
}

// setup loads configuration and builds the logger before any subcommand.
func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}

	if debug {
		cfg.Log.Level = "debug"
	}
	if logFormat != "" {
		if logFormat != "console" && logFormat != "json" {
			return fmt.Errorf("--log-format must be console or json (got %q)", logFormat)
		}
		cfg.Log.Format = logFormat
	}

	app.cfg = cfg
	app.logger = telemetry.NewLogger(telemetry.LogOptions{
		Service: cfg.OTEL.ServiceName,
		Level:   cfg.Log.Level,
		Console: cfg.Log.Format == "console",
		Out:     cmd.ErrOrStderr(),
	})
	return nil
}
