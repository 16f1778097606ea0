package trustnet

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/use-agent/fundscrape/models"
)

// MaxSectorPages is the pagination ceiling, first page included.
const MaxSectorPages = 10

const (
	endSettle   = time.Second
	clickSettle = 2 * time.Second
)

// ExtractSectorRows parses the sector performance table out of rendered
// HTML. The first container whose text includes the header token is used;
// rows with fewer than seven cells are skipped.
func ExtractSectorRows(rawHTML string, sel Selectors) ([]models.SectorResult, error) {
	container, err := cascadia.Parse(sel.SectorsTable)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
			"bad sectors table selector "+sel.SectorsTable, err)
	}
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInternal, "parse sectors html", err)
	}

	var target *goquery.Selection
	for _, n := range cascadia.QueryAll(root, container) {
		s := goquery.NewDocumentFromNode(n).Selection
		if strings.Contains(s.Text(), sel.SectorsHeaderToken) {
			target = s
			break
		}
	}
	if target == nil {
		return nil, nil
	}

	var rows []models.SectorResult
	target.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() < 7 {
			return
		}
		cell := func(i int) string { return strings.TrimSpace(tds.Eq(i).Text()) }
		rows = append(rows, models.SectorResult{
			Name: cell(0),
			M1:   ParsePercent(cell(1)),
			M3:   ParsePercent(cell(2)),
			M6:   ParsePercent(cell(3)),
			Y1:   ParsePercent(cell(4)),
			Y3:   ParsePercent(cell(5)),
			Y5:   ParsePercent(cell(6)),
		})
	})
	return rows, nil
}

// ScrapeSectors loads the sector performance page and walks its
// pagination. Pagination stops at the first missing next-page button,
// empty page, click failure or the page ceiling; rows gathered so far are
// kept. Only a failed initial load is an error.
func ScrapeSectors(ctx context.Context, opener Opener, sel Selectors, timestamp string) ([]models.SectorResult, error) {
	page, err := opener.Open(ctx, sel.SectorsURL)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	rows, err := extractFrom(ctx, page, sel)
	if err != nil {
		return nil, err
	}
	pages := 1

	for current := 1; current < MaxSectorPages; current++ {
		next := current + 1
		more, err := nextPage(ctx, page, sel, next)
		if err != nil {
			slog.Warn("pagination_aborted", "step", "sectors", "page", next, "error", err)
			break
		}
		if !more {
			slog.Info("no_more_pages", "step", "sectors", "page", next)
			break
		}
		got, err := extractFrom(ctx, page, sel)
		if err != nil {
			slog.Warn("pagination_aborted", "step", "sectors", "page", next, "error", err)
			break
		}
		if len(got) == 0 {
			slog.Warn("no_rows_extracted", "step", "sectors", "page", next)
			break
		}
		rows = append(rows, got...)
		pages = next
		slog.Debug("pagination_success", "step", "sectors", "page", next, "rows", len(got))
	}

	for i := range rows {
		rows[i].Timestamp = timestamp
	}
	slog.Info("sectors_scraped", "step", "sectors", "rows", len(rows), "pages", pages)
	return rows, nil
}

// nextPage clicks the pagination button labelled with page number n.
func nextPage(ctx context.Context, page Page, sel Selectors, n int) (bool, error) {
	if err := page.ScrollToEnd(ctx); err != nil {
		return false, err
	}
	if err := page.Settle(ctx, endSettle); err != nil {
		return false, err
	}
	clicked, err := page.ClickText(ctx, sel.PaginationButtons, strconv.Itoa(n))
	if err != nil || !clicked {
		return false, err
	}
	return true, page.Settle(ctx, clickSettle)
}

func extractFrom(ctx context.Context, page Page, sel Selectors) ([]models.SectorResult, error) {
	raw, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return ExtractSectorRows(raw, sel)
}
