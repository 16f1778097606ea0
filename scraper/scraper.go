package scraper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"golang.org/x/time/rate"

	"github.com/use-agent/fundscrape/config"
	"github.com/use-agent/fundscrape/models"
)

// sessionAttempts bounds browser startup, including the consent page load.
const sessionAttempts = 3

// Session is one browser shared by every page fetch in a run.
// Pages are used strictly one at a time.
type Session struct {
	browser    *rod.Browser
	launcher   *launcher.Launcher
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig
	consent    Consent
	limiter    *rate.Limiter
	startTime  time.Time

	mu    sync.Mutex
	pages []*rod.Page
}

// NewSession launches the browser, opens the site root and clicks through
// the consent banners. Startup is retried with exponential backoff.
func NewSession(ctx context.Context, browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig, consent Consent) (*Session, error) {
	var s *Session
	err := Retry(ctx, sessionAttempts, "browser_start", func(attempt int) error {
		sess, err := startSession(ctx, browserCfg, scraperCfg, consent)
		if err != nil {
			return err
		}
		s = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("browser ready",
		"step", "browser",
		"headless", browserCfg.Headless,
		"consent_done", true,
	)
	return s, nil
}

func startSession(ctx context.Context, browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig, consent Consent) (*Session, error) {
	l := launcher.New().
		Context(ctx).
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.Proxy != "" {
		l = l.Proxy(browserCfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("lang"), "en-GB")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Debug("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	s := &Session{
		browser:    browser,
		launcher:   l,
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
		consent:    consent,
		limiter:    newLimiter(scraperCfg.RateLimit),
		startTime:  time.Now(),
	}

	if consent.HomeURL != "" {
		if err := s.acceptConsent(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// newLimiter paces page opens. A non-positive rate disables pacing.
func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// Close closes every page opened by the session and kills the browser.
func (s *Session) Close() {
	s.mu.Lock()
	pages := s.pages
	s.pages = nil
	s.mu.Unlock()

	for _, p := range pages {
		_ = p.Close()
	}
	if err := s.browser.Close(); err != nil {
		slog.Debug("browser close", "error", err)
	}
	if s.launcher != nil {
		s.launcher.Kill()
	}
	slog.Info("browser closed", "pages", len(pages), "uptime", time.Since(s.startTime).Round(time.Second))
}

func (s *Session) track(p *rod.Page) {
	s.mu.Lock()
	s.pages = append(s.pages, p)
	s.mu.Unlock()
}

func (s *Session) untrack(p *rod.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, q := range s.pages {
		if q == p {
			s.pages = append(s.pages[:i], s.pages[i+1:]...)
			return
		}
	}
}
