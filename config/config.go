package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/fundscrape/models"
)

// Config holds all run configuration. It is built once per run and not
// mutated afterwards.
type Config struct {
	Input     InputConfig
	OutputDir string
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Log       LogConfig
	Publish   PublishConfig
	Graph     GraphConfig

	// HistoryDB is an optional SQLite file that run stats are appended to.
	HistoryDB string

	// Schedule is an optional cron spec; when set the pipeline runs on it.
	Schedule string

	// Summary renders a table of outputs and counters at run end.
	Summary bool

	Notify NotifyConfig
}

// InputConfig selects and shapes the tracking spreadsheet.
type InputConfig struct {
	// Exactly one of Path, SheetURL, DriveID must be set.
	Path     string
	SheetURL string
	DriveID  string

	Sheet string // default: "TrackingList"

	// HeaderRow is the 1-based row holding the column headers.
	HeaderRow int // default: 3

	ColURL     string
	ColHold    string
	ColHolding string
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// Stealth injects anti-bot-detection evasions into every page.
	Stealth bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for all page loads.
	Proxy string

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockTrackers blocks requests to known ad and analytics hosts.
	BlockTrackers bool // default: true
}

// ScraperConfig controls per-page scraping behavior.
type ScraperConfig struct {
	// RetriesPerURL is the number of attempts made for each fund page.
	RetriesPerURL int // default: 2

	// NavigationTimeout bounds a single page navigation.
	NavigationTimeout time.Duration // default: 20s

	// RateLimit is the maximum number of page opens per second.
	RateLimit float64 // default: 2

	// SelectorsFile is an optional YAML file overriding site selectors.
	SelectorsFile string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "text", "json" or "pretty"; default: "text"
}

// PublishConfig controls the optional upload of outputs to Cloud Storage.
type PublishConfig struct {
	GCSBucket string
	GCSPrefix string // default: "fundscrape"
}

// NotifyConfig controls the run-completion webhook.
type NotifyConfig struct {
	URL    string
	Secret string // signs the payload with HMAC-SHA256 when set
}

// GraphConfig controls the stage diagram export.
type GraphConfig struct {
	Out    string
	Format string // "png" or "mermaid"; default: "png"
}

// Load reads configuration from environment variables with sane defaults.
// Command-line flags bound with BindFlags override these values.
func Load() *Config {
	return &Config{
		Input: InputConfig{
			Path:       os.Getenv("FUNDSCRAPE_INPUT"),
			SheetURL:   os.Getenv("FUNDSCRAPE_GSHEET_URL"),
			DriveID:    os.Getenv("FUNDSCRAPE_GDRIVE_ID"),
			Sheet:      envOr("FUNDSCRAPE_SHEET", "TrackingList"),
			HeaderRow:  envIntOr("FUNDSCRAPE_ROW_START", 3),
			ColURL:     os.Getenv("FUNDSCRAPE_COL_URL"),
			ColHold:    os.Getenv("FUNDSCRAPE_COL_HOLD"),
			ColHolding: os.Getenv("FUNDSCRAPE_COL_HOLDING"),
		},
		OutputDir: os.Getenv("FUNDSCRAPE_OUTPUT"),
		Browser: BrowserConfig{
			Headless:   envBoolOr("FUNDSCRAPE_HEADLESS", true),
			NoSandbox:  envBoolOr("FUNDSCRAPE_NO_SANDBOX", false),
			Stealth:    envBoolOr("FUNDSCRAPE_STEALTH", true),
			BrowserBin: os.Getenv("FUNDSCRAPE_BROWSER_BIN"),
			Proxy:      os.Getenv("FUNDSCRAPE_PROXY"),
			BlockedResourceTypes: envSliceOr("FUNDSCRAPE_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			BlockTrackers: envBoolOr("FUNDSCRAPE_BLOCK_TRACKERS", true),
		},
		Scraper: ScraperConfig{
			RetriesPerURL:     envIntOr("FUNDSCRAPE_RETRIES_PER_URL", 2),
			NavigationTimeout: envDurationOr("FUNDSCRAPE_NAV_TIMEOUT", 20*time.Second),
			RateLimit:         envFloatOr("FUNDSCRAPE_RATE", 2.0),
			SelectorsFile:     os.Getenv("FUNDSCRAPE_SELECTORS"),
		},
		Log: LogConfig{
			Level:  envOr("FUNDSCRAPE_LOG_LEVEL", "info"),
			Format: envOr("FUNDSCRAPE_LOG_FORMAT", "text"),
		},
		Publish: PublishConfig{
			GCSBucket: os.Getenv("FUNDSCRAPE_GCS_BUCKET"),
			GCSPrefix: envOr("FUNDSCRAPE_GCS_PREFIX", "fundscrape"),
		},
		Graph: GraphConfig{
			Out:    os.Getenv("FUNDSCRAPE_GRAPH_OUT"),
			Format: envOr("FUNDSCRAPE_GRAPH_FORMAT", "png"),
		},
		HistoryDB: os.Getenv("FUNDSCRAPE_HISTORY_DB"),
		Schedule:  os.Getenv("FUNDSCRAPE_SCHEDULE"),
		Summary:   envBoolOr("FUNDSCRAPE_SUMMARY", false),
		Notify: NotifyConfig{
			URL:    os.Getenv("FUNDSCRAPE_NOTIFY_URL"),
			Secret: os.Getenv("FUNDSCRAPE_NOTIFY_SECRET"),
		},
	}
}

// Validate checks the configuration and normalizes the output directory to
// an absolute path. Any failure is fatal for the run.
func (c *Config) Validate() error {
	sources := 0
	for _, s := range []string{c.Input.Path, c.Input.SheetURL, c.Input.DriveID} {
		if strings.TrimSpace(s) != "" {
			sources++
		}
	}
	switch {
	case sources == 0:
		return invalid("one of --input, --gsheet-url or --gdrive-id is required")
	case sources > 1:
		return invalid("--input, --gsheet-url and --gdrive-id are mutually exclusive")
	}

	if strings.TrimSpace(c.OutputDir) == "" {
		return invalid("--output is required")
	}
	abs, err := filepath.Abs(c.OutputDir)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "cannot resolve output directory", err)
	}
	c.OutputDir = abs

	if c.Input.HeaderRow < 1 {
		return invalid(fmt.Sprintf("--row-start must be >= 1, got %d", c.Input.HeaderRow))
	}
	if c.Scraper.RetriesPerURL < 1 {
		return invalid(fmt.Sprintf("--retries-per-url must be >= 1, got %d", c.Scraper.RetriesPerURL))
	}
	if c.Scraper.NavigationTimeout <= 0 {
		return invalid("--nav-timeout must be positive")
	}
	switch c.Graph.Format {
	case "png", "mermaid":
	default:
		return invalid(fmt.Sprintf("--graph-format must be png or mermaid, got %q", c.Graph.Format))
	}
	switch c.Log.Format {
	case "text", "json", "pretty":
	default:
		return invalid(fmt.Sprintf("--log-format must be text, json or pretty, got %q", c.Log.Format))
	}
	return nil
}

// UsesCloudSheet reports whether the input comes from a cloud spreadsheet.
func (in InputConfig) UsesCloudSheet() bool {
	return in.Path == "" && (in.SheetURL != "" || in.DriveID != "")
}

func invalid(msg string) error {
	return models.NewScrapeError(models.ErrCodeInvalidInput, msg, nil)
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envDurationOr accepts Go durations ("20s") or a bare number of seconds.
func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
