package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/use-agent/apptrelay/api"
	"github.com/use-agent/apptrelay/config"
	"github.com/use-agent/apptrelay/metrics"
	"github.com/use-agent/apptrelay/runs"
	"github.com/use-agent/apptrelay/webhook"
)

const shutdownGrace = 5 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP trigger and run scrapes in the background",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	addServeFlags(cmd.Flags())
	return cmd
}

func addServeFlags(fs *pflag.FlagSet) {
	fs.Int("port", 0, "listen port (overrides APPTRELAY_PORT)")
	fs.String("host", "", "listen host (overrides APPTRELAY_HOST)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log, os.Stdout)
	slog.Info("apptrelay starting",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"headless", cfg.Browser.Headless,
		"userDataDir", cfg.Browser.UserDataDir,
	)

	// ── 3. Scraper, webhook sender and run queue ────────────────────
	sc, err := newScraper(cfg)
	if err != nil {
		return fmt.Errorf("initialise scraper: %w", err)
	}
	var m *metrics.RunMetrics
	if cfg.Metrics.Enabled {
		m = metrics.NewRunMetrics(nil)
	}
	mgr := runs.NewManager(sc, webhook.NewSender(cfg.Webhook), m, cfg.Runs, cfg.Scraper.RunTimeout)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	mgr.Start(ctx)

	// ── 4. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(mgr, cfg, startTime)

	// ── 5. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		stop()
		<-mgr.Done()
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// The running scrape sees the cancelled context and closes its browser.
	<-mgr.Done()
	slog.Info("apptrelay stopped")
	return nil
}
