// Command apptrelay signs in to the scheduling portal, reads the day's
// appointments and relays the reachable ones to a webhook.
//
//	apptrelay            # same as "apptrelay serve"
//	apptrelay serve      # HTTP trigger on :3000
//	apptrelay scrape     # one run in the foreground
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/apptrelay/api/handler"
	"github.com/use-agent/apptrelay/config"
	"github.com/use-agent/apptrelay/scraper"
	"github.com/use-agent/apptrelay/snapshot"
)

// version is set with -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	handler.Version = version

	root := &cobra.Command{
		Use:           "apptrelay",
		Short:         "Relay calendar appointments from the scheduling portal to a webhook",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	addServeFlags(root.Flags())

	root.AddCommand(newServeCmd(), newScrapeCmd())

	if err := root.Execute(); err != nil {
		slog.Error("apptrelay failed", "error", err)
		os.Exit(1)
	}
}

// newScraper wires the snapshot writer and the browser scraper.
func newScraper(cfg *config.Config) (*scraper.Scraper, error) {
	snaps, err := snapshot.NewWriter(cfg.Snapshot)
	if err != nil {
		return nil, err
	}
	return scraper.New(cfg.Browser, cfg.Portal, cfg.Scraper, snaps)
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig, w io.Writer) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}
