package trustnet

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/fundscrape/models"
)

// maxScannedTables bounds the search for the performance table.
const maxScannedTables = 6

// FundsOutcome is everything the fund stage produces.
type FundsOutcome struct {
	Rows   []models.FundResult
	Failed []string
	Stats  models.RunStats
}

// ScrapeFunds scrapes every record in order, one page at a time. Each URL
// gets up to attempts tries, each on a fresh page; a URL that exhausts
// them lands in Failed and contributes no row. Only context cancellation
// stops the loop early.
func ScrapeFunds(ctx context.Context, opener Opener, sel Selectors, records []models.FundRecord, timestamp string, attempts int) (FundsOutcome, error) {
	if attempts < 1 {
		attempts = 1
	}
	var out FundsOutcome
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		row, err := scrapeWithRetries(ctx, opener, sel, rec, timestamp, attempts)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			out.Failed = append(out.Failed, rec.URL)
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	out.Stats = models.NewRunStats(len(records), len(out.Rows), len(out.Failed))
	return out, nil
}

func scrapeWithRetries(ctx context.Context, opener Opener, sel Selectors, rec models.FundRecord, timestamp string, attempts int) (models.FundResult, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		row, err := ScrapeFund(ctx, opener, sel, rec, timestamp)
		if err == nil {
			slog.Info("fund_scraped", "step", "funds", "url", rec.URL, "status", "ok", "attempt", attempt)
			return row, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < attempts {
			slog.Warn("fund_retry",
				"step", "funds",
				"url", rec.URL,
				"attempt", attempt,
				"max_retries", attempts,
				"code", models.CodeOf(err),
				"reason", truncate(err.Error(), 100),
			)
		}
	}
	slog.Warn("fund_failed",
		"step", "funds",
		"url", rec.URL,
		"status", "failed",
		"attempts", attempts,
		"code", models.CodeOf(lastErr),
		"reason", truncate(lastErr.Error(), 100),
	)
	return models.FundResult{}, lastErr
}

// ScrapeFund opens one fund page and extracts its row. Only a missing
// performance table (or a failed load) is an error; the remaining fields
// are individually best-effort.
func ScrapeFund(ctx context.Context, opener Opener, sel Selectors, rec models.FundRecord, timestamp string) (models.FundResult, error) {
	page, err := opener.Open(ctx, rec.URL)
	if err != nil {
		return models.FundResult{}, err
	}
	defer page.Close()

	tables, err := page.InnerTexts(ctx, sel.Table, maxScannedTables)
	if err != nil {
		return models.FundResult{}, err
	}
	perfText, ok := findPerformanceTable(tables)
	if !ok {
		return models.FundResult{}, models.NewScrapeError(
			models.ErrCodeTableNotFound,
			fmt.Sprintf("performance table not found in first %d tables", maxScannedTables),
			nil,
		)
	}

	row := models.FundResult{
		Timestamp:   timestamp,
		Quartile:    FindQuartile(perfText),
		Performance: ExtractPerformance(perfText),
		URL:         rec.URL,
		Hold:        rec.Hold,
		HoldingPct:  rec.HoldingPct,
	}

	if names, err := page.InnerTexts(ctx, sel.FundName, 2); err == nil {
		row.FundName = nonEmpty(names, 0)
		row.Sector = nonEmpty(names, 1)
	}
	if raw, err := page.HTML(ctx); err == nil {
		row.SectorURL = sectorLink(raw, sel.SectorLinkText, rec.URL)
	}
	if risk, err := page.InnerTexts(ctx, sel.RiskScore, 1); err == nil && len(risk) > 0 {
		row.RiskScore = parseRisk(risk[0])
	}
	if unit, err := page.InnerTexts(ctx, sel.UnitInfoTable, 1); err == nil && len(unit) > 0 {
		row.Price = firstPriceToken(unit[0])
	}
	return row, nil
}

func findPerformanceTable(tables []string) (string, bool) {
	for i, t := range tables {
		if i >= maxScannedTables {
			break
		}
		if strings.Contains(t, "3 m") && strings.Contains(t, "6 m") {
			return t, true
		}
	}
	return "", false
}

// sectorLink returns the href of the first anchor whose text contains
// label, resolved against the page URL.
func sectorLink(rawHTML, label, pageURL string) models.Field[string] {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return models.None[string]()
	}
	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.Contains(a.Text(), label) {
			href, _ = a.Attr("href")
			return false
		}
		return true
	})
	href = strings.TrimSpace(href)
	if href == "" {
		return models.None[string]()
	}
	if base, err := url.Parse(pageURL); err == nil {
		if ref, err := url.Parse(href); err == nil {
			href = base.ResolveReference(ref).String()
		}
	}
	return models.Some(href)
}

func nonEmpty(vals []string, i int) models.Field[string] {
	if i >= len(vals) {
		return models.None[string]()
	}
	if v := strings.TrimSpace(vals[i]); v != "" {
		return models.Some(v)
	}
	return models.None[string]()
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
