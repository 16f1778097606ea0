package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/use-agent/fundscrape/history"
)

// PrintSummary renders the run's counters and output paths as a table.
func PrintSummary(w io.Writer, res *Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("Run %s (%s)", res.Meta.RunDate, res.Meta.RunID))
	t.AppendHeader(table.Row{"Metric", "Value"})

	t.AppendRows([]table.Row{
		{"Records loaded", res.Records},
		{"Sector rows", len(res.Sectors)},
		{"Funds scraped", res.Stats.ScrapedOK},
		{"Funds failed", res.Stats.Failed},
		{"Failure rate", fmt.Sprintf("%.1f%%", res.Stats.FailureRate*100)},
	})
	t.AppendSeparator()
	for _, row := range []struct{ label, path string }{
		{"Funds CSV", res.Outputs.FundsCSV},
		{"Funds parquet", res.Outputs.FundsParquet},
		{"Sectors CSV", res.Outputs.SectorsCSV},
		{"Sectors parquet", res.Outputs.SectorsParquet},
	} {
		if row.path != "" {
			t.AppendRow(table.Row{row.label, row.path})
		}
	}
	if res.Outputs.FundsFallback {
		t.AppendRow(table.Row{"Note", "funds written to fallback file"})
	}
	if len(res.Published) > 0 {
		t.AppendRow(table.Row{"Published objects", len(res.Published)})
	}

	if len(res.Failed) > 0 {
		t.AppendSeparator()
		for _, u := range res.Failed {
			t.AppendRow(table.Row{"Failed URL", u})
		}
	}
	t.Render()
}

// PrintHistory renders recent runs, newest first.
func PrintHistory(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Recent runs")
	t.AppendHeader(table.Row{"Date", "Run", "OK", "Failed", "Failure rate", "Sector rows"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.RunDate,
			r.RunID,
			r.Stats.ScrapedOK,
			r.Stats.Failed,
			fmt.Sprintf("%.1f%%", r.Stats.FailureRate*100),
			r.Stats.SectorRows,
		})
	}
	t.Render()
}

// RecentRuns reads the last n runs from the history database at path.
func RecentRuns(ctx context.Context, path string, n int) ([]history.Run, error) {
	store, err := history.Open(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Recent(ctx, n)
}
