package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Flags holds the values that need converting after the command line is
// parsed. Everything else is bound straight into Config.
type Flags struct {
	cfg        *Config
	fs         *pflag.FlagSet
	navTimeout int
	noHeadless bool
}

// LoadDotEnv loads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	var err error
	if path != "" {
		err = godotenv.Load(path)
	} else {
		err = godotenv.Load()
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// BindFlags registers every run flag on fs, using the current values of cfg
// (typically from Load) as defaults.
func BindFlags(fs *pflag.FlagSet, cfg *Config) *Flags {
	f := &Flags{cfg: cfg, fs: fs, navTimeout: ceilSeconds(cfg.Scraper.NavigationTimeout)}

	fs.StringVar(&cfg.Input.Path, "input", cfg.Input.Path, "Path to an Excel workbook")
	fs.StringVar(&cfg.Input.SheetURL, "gsheet-url", cfg.Input.SheetURL, "Google Sheets share URL")
	fs.StringVar(&cfg.Input.DriveID, "gdrive-id", cfg.Input.DriveID, "Google Drive file id of the tracking sheet")
	fs.StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "Output directory")
	fs.StringVar(&cfg.Input.Sheet, "sheet", cfg.Input.Sheet, "Worksheet name")
	fs.IntVar(&cfg.Input.HeaderRow, "row-start", cfg.Input.HeaderRow, "1-based row where the header row lives")
	fs.StringVar(&cfg.Input.ColURL, "col-url", cfg.Input.ColURL, "Explicit header of the URL column")
	fs.StringVar(&cfg.Input.ColHold, "col-hold", cfg.Input.ColHold, "Explicit header of the hold column")
	fs.StringVar(&cfg.Input.ColHolding, "col-holding", cfg.Input.ColHolding, "Explicit header of the holding percentage column")

	fs.IntVar(&cfg.Scraper.RetriesPerURL, "retries-per-url", cfg.Scraper.RetriesPerURL, "Attempts per fund URL")
	fs.IntVar(&f.navTimeout, "nav-timeout", f.navTimeout, "Navigation timeout in seconds")
	fs.Float64Var(&cfg.Scraper.RateLimit, "rate", cfg.Scraper.RateLimit, "Maximum page opens per second (0 disables pacing)")
	fs.StringVar(&cfg.Scraper.SelectorsFile, "selectors", cfg.Scraper.SelectorsFile, "YAML file overriding site selectors")

	fs.BoolVar(&cfg.Browser.Headless, "headless", cfg.Browser.Headless, "Run browser headless (default)")
	fs.BoolVar(&f.noHeadless, "no-headless", false, "Run browser with a visible window")
	fs.BoolVar(&cfg.Browser.NoSandbox, "no-sandbox", cfg.Browser.NoSandbox, "Disable the Chromium sandbox")
	fs.BoolVar(&cfg.Browser.Stealth, "stealth", cfg.Browser.Stealth, "Inject anti-bot-detection evasions")
	fs.StringVar(&cfg.Browser.BrowserBin, "browser-bin", cfg.Browser.BrowserBin, "Chromium binary path")
	fs.StringVar(&cfg.Browser.Proxy, "proxy", cfg.Browser.Proxy, "Proxy URL for page loads")

	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "debug, info, warn or error")
	fs.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "text, json or pretty")

	fs.StringVar(&cfg.Publish.GCSBucket, "gcs-bucket", cfg.Publish.GCSBucket, "Cloud Storage bucket to publish outputs to")
	fs.StringVar(&cfg.Publish.GCSPrefix, "gcs-prefix", cfg.Publish.GCSPrefix, "Object prefix for published outputs")
	fs.StringVar(&cfg.HistoryDB, "history-db", cfg.HistoryDB, "SQLite file recording run history")
	fs.StringVar(&cfg.Schedule, "schedule", cfg.Schedule, "Cron spec; run repeatedly on this schedule")
	fs.BoolVar(&cfg.Summary, "summary", cfg.Summary, "Print a summary table at run end")
	fs.StringVar(&cfg.Notify.URL, "notify-url", cfg.Notify.URL, "Webhook URL notified when a run finishes")
	fs.StringVar(&cfg.Notify.Secret, "notify-secret", cfg.Notify.Secret, "HMAC secret for webhook signatures")

	fs.StringVar(&cfg.Graph.Out, "graph-out", cfg.Graph.Out, "Save a diagram of the stage graph to this path")
	fs.StringVar(&cfg.Graph.Format, "graph-format", cfg.Graph.Format, "Diagram format: png or mermaid")

	return f
}

// Apply folds the converted flag values back into the Config. The
// navigation timeout is only replaced when --nav-timeout was given, so a
// sub-second value from the environment survives.
func (f *Flags) Apply() *Config {
	if f.fs.Changed("nav-timeout") {
		f.cfg.Scraper.NavigationTimeout = time.Duration(f.navTimeout) * time.Second
	}
	if f.noHeadless {
		f.cfg.Browser.Headless = false
	}
	return f.cfg
}

func ceilSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}
