package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/use-agent/apptrelay/config"
	"github.com/use-agent/apptrelay/models"
	"github.com/use-agent/apptrelay/runs"
	"github.com/use-agent/apptrelay/webhook"
)

type scrapeOptions struct {
	email    string
	password string
	webhook  string
	json     bool
	progress bool
}

func newScrapeCmd() *cobra.Command {
	opts := &scrapeOptions{}
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one scrape in the foreground and print the resolved appointments",
		Long: `Run one scrape in the foreground.

Credentials come from --email/--password or APPTRELAY_EMAIL/APPTRELAY_PASSWORD.
With --webhook the resolved appointments are also delivered.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScrape(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.email, "email", "", "portal login email")
	cmd.Flags().StringVar(&opts.password, "password", "", "portal password")
	cmd.Flags().StringVar(&opts.webhook, "webhook", "", "webhook URL that receives the resolved records")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the records as JSON instead of a table")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "show a spinner on stderr while scraping")
	return cmd
}

func runScrape(parent context.Context, opts *scrapeOptions, out io.Writer) error {
	cfg := config.Load()
	// stdout carries the result.
	initLogger(cfg.Log, os.Stderr)

	creds := models.Credentials{Email: opts.email, Password: opts.password}
	if creds.Email == "" {
		creds.Email = os.Getenv("APPTRELAY_EMAIL")
	}
	if creds.Password == "" {
		creds.Password = os.Getenv("APPTRELAY_PASSWORD")
	}

	sc, err := newScraper(cfg)
	if err != nil {
		return fmt.Errorf("initialise scraper: %w", err)
	}

	var sender runs.Deliverer
	if opts.webhook != "" {
		sender = webhook.NewSender(cfg.Webhook)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Scraper.RunTimeout)
	defer cancel()

	if opts.progress {
		done := spin(ctx)
		defer done()
	}

	result, err := runs.Process(ctx, sc, sender, creds, opts.webhook)
	if err != nil && len(result.Records) == 0 {
		return err
	}

	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(result.Resolved); encErr != nil {
			return encErr
		}
	} else {
		printTable(out, result)
	}
	return err
}

// printTable writes the resolved records and a one-line summary.
func printTable(out io.Writer, result runs.Outcome) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPATIENT\tDATE/TIME\tPHONE")
	for i, a := range result.Resolved {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, a.Patient, a.DateTime, a.PhoneNumber)
	}
	_ = tw.Flush()

	fmt.Fprintf(out, "\n%d processed, %d with phone number, %d failed", len(result.Records), len(result.Resolved), result.Failed())
	if result.Attempted {
		fmt.Fprintf(out, ", webhook delivered: %t", result.Delivered)
	}
	fmt.Fprintln(out)
}

// spin shows an indeterminate spinner on stderr until the returned func is
// called or ctx ends.
func spin(ctx context.Context) func() {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("scraping calendar"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	stopCh := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()
	return func() {
		close(stopCh)
		<-finished
		_ = bar.Finish()
	}
}
