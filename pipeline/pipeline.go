// Package pipeline drives a scrape run: six stages executed strictly in
// order, each handing explicit values to the next.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"google.golang.org/api/option"

	"github.com/use-agent/fundscrape/config"
	"github.com/use-agent/fundscrape/export"
	"github.com/use-agent/fundscrape/history"
	"github.com/use-agent/fundscrape/models"
	"github.com/use-agent/fundscrape/scraper"
	"github.com/use-agent/fundscrape/sheet"
	"github.com/use-agent/fundscrape/trustnet"
)

// Stage names, in execution order.
const (
	StageConfig  = "config"
	StageInput   = "input"
	StageBrowser = "browser"
	StageSectors = "sectors"
	StageFunds   = "funds"
	StageWrite   = "normalize_write"
)

// Stages returns the stage names in execution order.
func Stages() []string {
	return []string{StageConfig, StageInput, StageBrowser, StageSectors, StageFunds, StageWrite}
}

// Result is everything a run produced.
type Result struct {
	Meta      models.RunMeta
	Records   int
	Sectors   []models.SectorResult
	Funds     []models.FundResult
	Failed    []string
	Stats     models.RunStats
	Outputs   export.Outputs
	Published []string

	// WriteErr is set when some outputs could not be written but the fund
	// rows still landed somewhere (possibly the fallback file).
	WriteErr error
}

// Runner holds the I/O boundaries of a run. Nil fields use the real
// implementations; tests replace them.
type Runner struct {
	LoadInput   func(ctx context.Context, in config.InputConfig) ([]models.FundRecord, error)
	OpenBrowser func(ctx context.Context, cfg *config.Config, sel trustnet.Selectors) (trustnet.Opener, func(), error)
	Publish     func(ctx context.Context, pc config.PublishConfig, runDate string, files []string) ([]string, error)
}

// Run executes one full pipeline run with the default Runner.
func Run(ctx context.Context, cfg *config.Config, meta models.RunMeta) (*Result, error) {
	return (&Runner{}).Run(ctx, cfg, meta)
}

// Run executes the stages in order. The first stage error aborts the run;
// there is no recovery across stage boundaries. The partial Result is
// returned alongside the error.
func (r *Runner) Run(ctx context.Context, cfg *config.Config, meta models.RunMeta) (*Result, error) {
	res := &Result{Meta: meta}

	var (
		sel          trustnet.Selectors
		records      []models.FundRecord
		opener       trustnet.Opener
		closeBrowser func()
	)
	defer func() {
		if closeBrowser != nil {
			closeBrowser()
		}
	}()

	stages := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{StageConfig, func(ctx context.Context) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
				return models.NewScrapeError(models.ErrCodeInvalidInput, "create output directory", err)
			}
			var err error
			sel, err = trustnet.LoadSelectors(cfg.Scraper.SelectorsFile)
			return err
		}},
		{StageInput, func(ctx context.Context) error {
			var err error
			records, err = r.loadInput(ctx, cfg.Input)
			res.Records = len(records)
			return err
		}},
		{StageBrowser, func(ctx context.Context) error {
			o, closeFn, err := r.openBrowser(ctx, cfg, sel)
			if err != nil {
				return err
			}
			opener, closeBrowser = o, closeFn
			return nil
		}},
		{StageSectors, func(ctx context.Context) error {
			var err error
			res.Sectors, err = trustnet.ScrapeSectors(ctx, opener, sel, meta.Timestamp)
			return err
		}},
		{StageFunds, func(ctx context.Context) error {
			out, err := trustnet.ScrapeFunds(ctx, opener, sel, records, meta.Timestamp, cfg.Scraper.RetriesPerURL)
			res.Funds, res.Failed, res.Stats = out.Rows, out.Failed, out.Stats
			res.Stats.SectorRows = len(res.Sectors)
			return err
		}},
		{StageWrite, func(ctx context.Context) error {
			return r.write(ctx, cfg, res)
		}},
	}

	for _, st := range stages {
		if err := runStage(ctx, st.name, st.fn); err != nil {
			return res, err
		}
	}

	r.recordHistory(ctx, cfg.HistoryDB, res)

	slog.Info("run_complete",
		"run_id", meta.RunID,
		"funds_csv", res.Outputs.FundsCSV,
		"sectors_csv", res.Outputs.SectorsCSV,
		"failed_urls", len(res.Failed),
		"failure_rate", res.Stats.FailureRate,
	)
	return res, nil
}

func runStage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	slog.Debug("stage_start", "step", name)
	if err := fn(ctx); err != nil {
		slog.Error("stage_failed",
			"step", name,
			"code", models.CodeOf(err),
			"duration", time.Since(start).Round(time.Millisecond),
			"error", err,
		)
		return fmt.Errorf("%s: %w", name, err)
	}
	slog.Info("stage_done", "step", name, "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// write stores the outputs and publishes them. A write error is fatal only
// when not even the fallback fund file landed.
func (r *Runner) write(ctx context.Context, cfg *config.Config, res *Result) error {
	out, err := export.Write(cfg.OutputDir, res.Meta.RunDate, res.Funds, res.Sectors)
	res.Outputs = out
	if err != nil {
		if out.FundsCSV == "" {
			return err
		}
		res.WriteErr = err
	}

	if cfg.Publish.GCSBucket == "" {
		return nil
	}
	published, perr := r.publish(ctx, cfg.Publish, res.Meta.RunDate, out.Files())
	res.Published = published
	if perr != nil {
		slog.Warn("publish_failed", "step", StageWrite, "bucket", cfg.Publish.GCSBucket, "error", perr)
	}
	return nil
}

func (r *Runner) recordHistory(ctx context.Context, path string, res *Result) {
	if path == "" {
		return
	}
	store, err := history.Open(path)
	if err != nil {
		slog.Warn("history_unavailable", "path", path, "error", err)
		return
	}
	defer store.Close()

	err = store.Record(ctx, history.Run{
		RunID:      res.Meta.RunID,
		RunDate:    res.Meta.RunDate,
		FinishedAt: time.Now(),
		Stats:      res.Stats,
		FailedURLs: res.Failed,
		FundsCSV:   res.Outputs.FundsCSV,
		SectorsCSV: res.Outputs.SectorsCSV,
	})
	if err != nil {
		slog.Warn("history_record_failed", "path", path, "error", err)
	}
}

func (r *Runner) loadInput(ctx context.Context, in config.InputConfig) ([]models.FundRecord, error) {
	if r.LoadInput != nil {
		return r.LoadInput(ctx, in)
	}
	return sheet.Load(ctx, in)
}

func (r *Runner) openBrowser(ctx context.Context, cfg *config.Config, sel trustnet.Selectors) (trustnet.Opener, func(), error) {
	if r.OpenBrowser != nil {
		return r.OpenBrowser(ctx, cfg, sel)
	}
	s, err := scraper.NewSession(ctx, cfg.Browser, cfg.Scraper, sel.Consent())
	if err != nil {
		return nil, nil, err
	}
	return trustnet.SessionOpener(s), s.Close, nil
}

func (r *Runner) publish(ctx context.Context, pc config.PublishConfig, runDate string, files []string) ([]string, error) {
	if r.Publish != nil {
		return r.Publish(ctx, pc, runDate, files)
	}
	var opts []option.ClientOption
	if cred, err := sheet.CredentialsOption(); err == nil {
		opts = append(opts, cred)
	}
	p, err := export.NewPublisher(ctx, pc.GCSBucket, pc.GCSPrefix, opts...)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.Publish(ctx, runDate, files)
}
