package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/use-agent/fundscrape/config"
	"github.com/use-agent/fundscrape/graph"
	"github.com/use-agent/fundscrape/models"
	"github.com/use-agent/fundscrape/pipeline"
	"github.com/use-agent/fundscrape/webhook"
)

func main() {
	// ── 1. Load .env before env-derived defaults are read ───────────
	if err := config.LoadDotEnv(""); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("fundscrape failed", "code", models.CodeOf(err), "error", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()
	var flags *config.Flags

	cmd := &cobra.Command{
		Use:   "fundscrape",
		Short: "Scrape fund and sector performance for a tracking spreadsheet",
		Long: `fundscrape reads a list of tracked fund URLs from an Excel workbook or a
Google Sheet, scrapes each fund page and the sector performance table, and
writes <date>_funds and <date>_sectors as CSV and Parquet.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := flags.Apply()

			// ── 2. Initialise structured logging ────────────────────
			initLogger(cfg.Log)

			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()

			// ── 3. Stage diagram, before any scraping ───────────────
			if cfg.Graph.Out != "" {
				if err := graph.Export(ctx, graph.NewRenderer(""), pipeline.Stages(), cfg.Graph.Out, cfg.Graph.Format); err != nil {
					slog.Warn("graph_export_failed", "path", cfg.Graph.Out, "error", err)
				}
			}

			// ── 4. Run once, or on a schedule ───────────────────────
			if cfg.Schedule == "" {
				return runOnce(ctx, cfg)
			}
			return pipeline.Schedule(ctx, cfg.Schedule, runLocation(), func(ctx context.Context) {
				if err := runOnce(ctx, cfg); err != nil {
					slog.Error("scheduled run failed", "code", models.CodeOf(err), "error", err)
				}
			})
		},
	}

	flags = config.BindFlags(cmd.Flags(), cfg)
	cmd.MarkFlagsMutuallyExclusive("input", "gsheet-url", "gdrive-id")
	cmd.MarkFlagsMutuallyExclusive("headless", "no-headless")
	return cmd
}

// recentRuns is how many past runs the summary lists.
const recentRuns = 5

func runOnce(ctx context.Context, cfg *config.Config) error {
	meta := models.NewRunMeta(time.Now())
	slog.Info("fundscrape starting",
		"run_id", meta.RunID,
		"run_date", meta.RunDate,
		"output", cfg.OutputDir,
		"headless", cfg.Browser.Headless,
	)
	res, err := pipeline.Run(ctx, cfg, meta)

	if cfg.Notify.URL != "" {
		// The run context may already be canceled; the notice still goes out.
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		if nerr := webhook.New(cfg.Notify.URL, cfg.Notify.Secret).Deliver(nctx, pipeline.Event(meta, res, err)); nerr != nil {
			slog.Warn("webhook_failed", "url", cfg.Notify.URL, "error", nerr)
		}
		cancel()
	}

	if err != nil {
		return err
	}
	if cfg.Summary {
		pipeline.PrintSummary(os.Stdout, res)
		if cfg.HistoryDB != "" {
			runs, herr := pipeline.RecentRuns(ctx, cfg.HistoryDB, recentRuns)
			if herr != nil {
				slog.Warn("history_unavailable", "path", cfg.HistoryDB, "error", herr)
			} else {
				pipeline.PrintHistory(os.Stdout, runs)
			}
		}
	}
	return nil
}

// runLocation is the zone cron specs are evaluated in.
func runLocation() *time.Location {
	loc, err := time.LoadLocation(models.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
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

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "pretty":
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
