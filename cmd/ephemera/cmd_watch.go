package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/yairfalse/ephemera/internal/daemon"
	"github.com/yairfalse/ephemera/internal/guard"
	"github.com/yairfalse/ephemera/internal/report"
	"github.com/yairfalse/ephemera/internal/telemetry"
)

var (
	watchInterval    time.Duration
	watchReclaim     bool
	watchOnce        bool
	watchMetricsAddr string
	watchPolicy      string
	watchMaxAge      float64
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously find and reclaim stale preview environments",
	Long: `Run ephemera as a daemon. Every interval it scans, classifies and, for
each PR with stale objects, looks up the PR state and asks the reclaim
policy whether the PR may be reclaimed.

Without --reclaim the daemon only reports its decisions.

Features:
- Prometheus metrics on /metrics
- Health checks on /health, /-/healthy, /-/ready
- Last pass details on /last-pass
- Graceful shutdown on SIGTERM/SIGINT`,
	Example: `  ephemera watch                          # Report only, every 15m
  ephemera watch --reclaim --interval 5m  # Reclaim closed and merged PRs
  ephemera watch --once                   # One pass, print it, exit
  ephemera watch --policy reclaim.rego    # Custom reclaim policy`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Pass interval (default from config, 15m)")
	watchCmd.Flags().BoolVar(&watchReclaim, "reclaim", false, "Reclaim PRs the policy allows (default from config)")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Run a single pass and exit")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Metrics and health listen address (default from config, :9090)")
	watchCmd.Flags().StringVar(&watchPolicy, "policy", "", "Rego policy file (default built-in: closed or merged PRs only)")
	watchCmd.Flags().Float64Var(&watchMaxAge, "max-age", 0, "Maximum age in hours (default from config, 72)")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := app.cfg

	otelCfg := cfg.OTEL
	otelCfg.Metrics.Prometheus = !watchOnce
	provider, err := telemetry.NewProvider(ctx, otelCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			app.logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	metrics, err := telemetry.NewMetrics(provider.Meter())
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}
	app.metrics = metrics

	policyFile := firstNonEmpty(watchPolicy, cfg.Daemon.PolicyFile)
	g, err := guard.Load(ctx, policyFile)
	if err != nil {
		return err
	}

	checker, err := app.checker()
	if err != nil {
		return err
	}

	rt, release, err := app.runtime()
	if err != nil {
		return err
	}
	defer release()

	j, err := app.openJournal()
	if err != nil {
		return err
	}
	defer closeJournal(j, app.logger)

	interval := watchInterval
	if interval <= 0 {
		interval = cfg.Daemon.Interval
	}
	reclaim := cfg.Daemon.Reclaim
	if cmd.Flags().Changed("reclaim") {
		reclaim = watchReclaim
	}

	deps := daemon.Deps{
		Scanner:   app.scanner(rt),
		Reclaimer: app.reclaimer(rt, recorder(j)),
		Checker:   checker,
		Guard:     g,
	}
	if j != nil {
		deps.Recorder = j
	}

	d, err := daemon.NewDaemon(daemon.Config{
		Interval:    interval,
		MaxAgeHours: maxAge(watchMaxAge),
		Reclaim:     reclaim,
		Concurrency: cfg.Daemon.Concurrency,
	}, deps, app.logger, metrics)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	if watchOnce {
		pass, err := d.RunOnce(ctx)
		if err != nil {
			return err
		}
		return report.JSON(cmd.OutOrStdout(), pass)
	}

	addr := firstNonEmpty(watchMetricsAddr, cfg.Daemon.MetricsAddr)
	return serve(ctx, d, provider.MetricsHandler(), addr)
}

// serve runs the daemon loop and the HTTP server until a signal arrives or
// either of them stops.
func serve(ctx context.Context, d *daemon.Daemon, metrics http.Handler, addr string) error {
	logger := app.logger
	var group run.Group

	{
		loopCtx, cancel := context.WithCancel(ctx)
		group.Add(func() error {
			return d.Start(loopCtx)
		}, func(error) {
			cancel()
		})
	}
	{
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		srv := d.NewServer(addr, metrics)
		group.Add(func() error {
			logger.Info().Str("addr", ln.Addr().String()).Msg("serving metrics and health")
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}, func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		})
	}
	group.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	err := group.Run()
	var sig run.SignalError
	if errors.As(err, &sig) || errors.Is(err, context.Canceled) {
		logger.Info().Str("reason", err.Error()).Msg("watch stopped")
		return nil
	}
	return err
}
