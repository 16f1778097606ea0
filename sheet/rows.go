package sheet

import (
	"log/slog"
	"strings"

	"github.com/use-agent/fundscrape/models"
)

// Records turns raw sheet rows into fund records.
//
// headerRow is the 1-based row holding the headers; rows above it are
// ignored. Rows with a blank URL are skipped and repeated URLs keep only
// their first occurrence.
func Records(rows [][]string, headerRow int, overrides Overrides, positional bool) []models.FundRecord {
	if headerRow < 1 {
		headerRow = 1
	}
	if len(rows) < headerRow {
		return nil
	}
	headers := rows[headerRow-1]
	cols := ResolveColumns(headers, overrides, positional)
	slog.Debug("columns resolved",
		"step", "input",
		"url", cols.Names[ColumnURL],
		"hold", cols.Names[ColumnHold],
		"holding", cols.Names[ColumnHolding],
	)
	if cols.URL < 0 {
		slog.Warn("url column not found", "step", "input", "headers", headers)
		return nil
	}

	seen := make(map[string]struct{})
	out := make([]models.FundRecord, 0, len(rows)-headerRow)
	for _, row := range rows[headerRow:] {
		url := strings.TrimSpace(cell(row, cols.URL))
		if url == "" {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		out = append(out, models.FundRecord{
			URL:        url,
			Hold:       ToBool(cell(row, cols.Hold)),
			HoldingPct: ToPct(cell(row, cols.Holding)),
		})
	}
	return out
}

// cell returns row[i], or "" when i is unresolved or past the row's end.
// Sheet readers trim trailing empty cells, so short rows are normal.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
