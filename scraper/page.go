package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/fundscrape/models"
)

// navAttempts bounds page loads: one retry after the first failure.
const navAttempts = 2

// Page is a loaded browser tab.
type Page struct {
	page    *rod.Page
	router  *rod.HijackRouter
	session *Session
}

// Open loads url in a fresh tab. Navigation is retried once with backoff;
// every attempt uses a new tab.
//
// Lifecycle per attempt:
//
//  1. Pace             – wait for the rate limiter
//  2. Create tab       – tracked by the session so Close can reap it
//  3. Stealth + headers + hijack, all before navigation
//  4. Navigate         – bounded by the navigation timeout
//  5. Wait             – DOM stable, best effort
//  6. Dismiss modal    – the terms dialog reappears on some sub-pages
func (s *Session) Open(ctx context.Context, url string) (*Page, error) {
	var out *Page
	err := Retry(ctx, navAttempts, "open_page", func(attempt int) error {
		p, err := s.openOnce(ctx, url)
		if err != nil {
			slog.Debug("page open failed", "url", url, "attempt", attempt, "error", err)
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Session) openOnce(ctx context.Context, url string) (*Page, error) {
	// ── 1. Pace ─────────────────────────────────────────────────────
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, categorizeError(err, "rate limiter wait aborted")
	}

	// ── 2. Create tab ───────────────────────────────────────────────
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to create page",
			err,
		)
	}
	s.track(page)
	p := &Page{page: page, session: s}

	// ── 3. Stealth, headers, hijack ─────────────────────────────────
	if s.browserCfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}
	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{
			"Accept-Language": "en-GB,en;q=0.9",
		}),
	}.Call(page)
	p.router = setupHijack(page, s.browserCfg.BlockedResourceTypes, s.browserCfg.BlockTrackers)

	// ── 4. Navigate ─────────────────────────────────────────────────
	navCtx, cancel := context.WithTimeout(ctx, s.scraperCfg.NavigationTimeout)
	defer cancel()
	nav := page.Context(navCtx)
	if err := nav.Navigate(url); err != nil {
		_ = p.Close()
		return nil, categorizeError(err, "navigation to "+url+" failed")
	}

	// ── 5. Wait ─────────────────────────────────────────────────────
	if err := nav.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"url", url,
			"error", err,
		)
	}

	// ── 6. Dismiss modal ────────────────────────────────────────────
	s.dismissModal(ctx, p)

	return p, nil
}

// InnerTexts returns the rendered text of the elements matching selector,
// in document order. max <= 0 means no limit.
func (p *Page) InnerTexts(ctx context.Context, selector string, max int) ([]string, error) {
	res, err := p.page.Context(ctx).Eval(`(sel, max) => {
		const els = Array.from(document.querySelectorAll(sel));
		return (max > 0 ? els.slice(0, max) : els).map(el => el.innerText || "");
	}`, selector, max)
	if err != nil {
		return nil, categorizeError(err, fmt.Sprintf("reading %q failed", selector))
	}
	arr := res.Value.Arr()
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		out = append(out, v.Str())
	}
	return out, nil
}

// HTML returns the page's current rendered HTML.
func (p *Page) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", categorizeError(err, "failed to extract page HTML")
	}
	return html, nil
}

// Close stops request interception and closes the tab.
func (p *Page) Close() error {
	if p.router != nil {
		_ = p.router.Stop()
		p.router = nil
	}
	p.session.untrack(p.page)
	return p.page.Close()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed ScrapeErrors.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	case strings.Contains(err.Error(), "Target closed"),
		strings.Contains(err.Error(), "websocket"):
		return models.NewScrapeError(models.ErrCodeBrowserCrash, msg, err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
