package scraper

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

const (
	// clickTimeout bounds the wait for an optional banner element.
	clickTimeout = 2 * time.Second
	// homeTimeout bounds the initial load of the site root.
	homeTimeout = 30 * time.Second
)

// Click is one optional click on a consent element.
type Click struct {
	Name     string
	Selector string
	// After is the pause once the click lands.
	After time.Duration
}

// Modal is a dialog that is only handled while its element carries
// ShowClass.
type Modal struct {
	Selector  string
	ShowClass string
	Clicks    []Click
}

// Consent describes the banners to clear before scraping.
type Consent struct {
	HomeURL string
	Clicks  []Click
	Modal   Modal
}

// acceptConsent opens the site root on a throwaway tab and clicks through
// every banner. Absent banners are skipped; only a failed load is an error.
func (s *Session) acceptConsent(ctx context.Context) error {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return categorizeError(err, "failed to create consent page")
	}
	defer page.Close()

	if s.browserCfg.Stealth {
		_, _ = page.EvalOnNewDocument(stealth.JS)
	}

	homeCtx, cancel := context.WithTimeout(ctx, homeTimeout)
	defer cancel()
	if err := page.Context(homeCtx).Navigate(s.consent.HomeURL); err != nil {
		return categorizeError(err, "failed to load "+s.consent.HomeURL)
	}
	_ = page.Context(homeCtx).WaitLoad()

	clicked := 0
	for _, c := range s.consent.Clicks {
		if maybeClick(ctx, page, c) {
			clicked++
		}
	}
	if s.dismissModalOn(ctx, page) {
		clicked++
	}
	slog.Info("consent handled", "step", "browser", "clicks", clicked)
	return nil
}

// dismissModal clears the terms dialog on a freshly opened page.
func (s *Session) dismissModal(ctx context.Context, p *Page) {
	if s.dismissModalOn(ctx, p.page) {
		slog.Debug("modal dismissed")
	}
}

func (s *Session) dismissModalOn(ctx context.Context, page *rod.Page) bool {
	m := s.consent.Modal
	if m.Selector == "" {
		return false
	}
	els, err := page.Context(ctx).Elements(m.Selector)
	if err != nil || len(els) == 0 {
		return false
	}
	class, err := els[0].Attribute("class")
	if err != nil || class == nil || !strings.Contains(*class, m.ShowClass) {
		return false
	}
	for _, c := range m.Clicks {
		maybeClick(ctx, page, c)
	}
	return true
}

// maybeClick waits briefly for c.Selector and clicks it. A missing element
// or failed click is not an error.
func maybeClick(ctx context.Context, page *rod.Page, c Click) bool {
	cctx, cancel := context.WithTimeout(ctx, clickTimeout)
	defer cancel()

	el, err := page.Context(cctx).Element(c.Selector)
	if err != nil {
		slog.Debug("optional element absent", "name", c.Name, "selector", c.Selector)
		return false
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		slog.Debug("optional click failed", "name", c.Name, "error", err)
		return false
	}
	if c.After > 0 {
		_ = settle(ctx, c.After)
	}
	return true
}

// ClickText clicks the first element matching selector whose trimmed text
// equals label. It reports false when no such element exists. The element
// is scrolled to the viewport centre first; if the native click is
// intercepted a DOM click is dispatched instead.
func (p *Page) ClickText(ctx context.Context, selector, label string) (bool, error) {
	page := p.page.Context(ctx)
	els, err := page.Elements(selector)
	if err != nil {
		return false, categorizeError(err, "listing "+selector+" failed")
	}
	for _, el := range els {
		text, err := el.Text()
		if err != nil || strings.TrimSpace(text) != label {
			continue
		}
		_, _ = el.Eval(`function() { this.scrollIntoView({block: "center"}) }`)
		if err := settle(ctx, 500*time.Millisecond); err != nil {
			return false, err
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			if _, jsErr := el.Eval(`function() { this.click() }`); jsErr != nil {
				return false, categorizeError(jsErr, "click on "+label+" failed")
			}
		}
		return true, nil
	}
	return false, nil
}

// ScrollToEnd scrolls to the bottom of the document.
func (p *Page) ScrollToEnd(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	if err != nil {
		return categorizeError(err, "scroll failed")
	}
	return nil
}

// Settle pauses for d so client-side rendering can finish.
func (p *Page) Settle(ctx context.Context, d time.Duration) error {
	return settle(ctx, d)
}

func settle(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
