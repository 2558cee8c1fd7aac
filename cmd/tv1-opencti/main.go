// Command tv1-opencti is the Trend Vision One → OpenCTI threat-intel
// connector binary.
//
// Subcommands:
//
//	run      — poll the feed forever and import into OpenCTI (production mode)
//	once     — execute exactly one poll cycle and exit
//	version  — print the build version
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Embeds the IANA timezone database in the binary so that time handling
	// works inside distroless containers that have no /usr/share/zoneinfo.
	_ "time/tzdata"

	// Automatically sets GOMEMLIMIT from the cgroup memory limit so that
	// the Go GC triggers before the OOM killer fires in containers.
	_ "github.com/KimMachineGun/automemlimit"

	"github.com/spf13/cobra"

	"github.com/jemik/tv1-opencti/internal/config"
	"github.com/jemik/tv1-opencti/internal/connector"
	"github.com/jemik/tv1-opencti/internal/feed/tv1"
	"github.com/jemik/tv1-opencti/internal/opencti"
	"github.com/jemik/tv1-opencti/internal/ops"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "tv1-opencti",
		Short: "Trend Vision One threat-intel feed connector for OpenCTI",
		// Silence default error printing; we print it ourselves with slog.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(
		runCmd(),
		onceCmd(),
		versionCmd(),
	)

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// ── run ───────────────────────────────────────────────────────────────────────

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the feed forever and import into OpenCTI",
		RunE:  runRun,
	}
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(newLogger(cfg))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	conn, importer := buildConnector(cfg)
	if err := importer.HealthCheck(ctx); err != nil {
		return err
	}

	if cfg.OpsEnabled {
		srv := ops.NewServer(conn.Status())
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
				slog.Error("ops listener failed", "error", err)
			}
		}()
	}

	return conn.Run(ctx)
}

// ── once ──────────────────────────────────────────────────────────────────────

func onceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Execute exactly one poll cycle and exit",
		RunE:  runOnce,
	}
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(newLogger(cfg))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	conn, importer := buildConnector(cfg)
	if err := importer.HealthCheck(ctx); err != nil {
		return err
	}
	return conn.RunOnce(ctx)
}

// ── version ───────────────────────────────────────────────────────────────────

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

// ── wiring ────────────────────────────────────────────────────────────────────

func buildConnector(cfg *config.Config) (*connector.Connector, *opencti.Client) {
	timeout := time.Duration(cfg.HTTPTimeoutSeconds) * time.Second

	importer := opencti.New(&http.Client{Timeout: timeout}, cfg.OpenCTIURL, cfg.OpenCTIToken)

	// A fresh adapter — and with it fresh request plumbing — is built for
	// every cycle; only cfg is shared.
	newFetcher := func() connector.Fetcher {
		return tv1.New(&http.Client{Timeout: timeout}, tv1.Params{
			APIRoot:          cfg.APIRoot,
			APIKey:           cfg.APIKey,
			ContextualFilter: cfg.ContextualFilter,
			Location:         cfg.Location,
			Industry:         cfg.Industry,
			ResponseFormat:   cfg.ResponseFormat,
			MaxRetries:       cfg.FetchMaxRetries,
		})
	}

	return connector.New(cfg, newFetcher, importer), importer
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.EffectiveLogLevel() {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
