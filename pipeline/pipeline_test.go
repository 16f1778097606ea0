package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/fundscrape/config"
	"github.com/use-agent/fundscrape/export"
	"github.com/use-agent/fundscrape/history"
	"github.com/use-agent/fundscrape/models"
	"github.com/use-agent/fundscrape/trustnet"
)

const sectorsPage = `<div class="table-responsive"><table>
<thead><tr><th>Name</th></tr></thead>
<tbody><tr><td>Global</td><td>1%</td><td>2%</td><td>3%</td><td>4%</td><td>5%</td><td>6%</td></tr></tbody>
</table></div>`

// stubPage serves fixed content: the sectors table as HTML and a
// performance table for fund pages.
type stubPage struct{}

func (stubPage) InnerTexts(_ context.Context, selector string, _ int) ([]string, error) {
	switch selector {
	case trustnet.DefaultSelectors().Table:
		return []string{"3 m 6 m 1 y 3 y 5 y\n1% 2% 3% 4% 5%"}, nil
	case trustnet.DefaultSelectors().FundName:
		return []string{"Fund", "Sector"}, nil
	}
	return nil, nil
}

func (stubPage) HTML(context.Context) (string, error) { return sectorsPage, nil }

func (stubPage) ClickText(context.Context, string, string) (bool, error) { return false, nil }

func (stubPage) ScrollToEnd(context.Context) error { return nil }

func (stubPage) Settle(context.Context, time.Duration) error { return nil }

func (stubPage) Close() error { return nil }

type stubOpener struct {
	bad map[string]bool
}

func (o stubOpener) Open(_ context.Context, url string) (trustnet.Page, error) {
	if o.bad[url] {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "unreachable", nil)
	}
	return stubPage{}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Load()
	cfg.Input = config.InputConfig{Path: "tracking.xlsx", Sheet: "TrackingList", HeaderRow: 3}
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.Publish = config.PublishConfig{}
	cfg.HistoryDB = ""
	return cfg
}

func testRunner(records []models.FundRecord, bad map[string]bool, closed *bool) *Runner {
	return &Runner{
		LoadInput: func(context.Context, config.InputConfig) ([]models.FundRecord, error) {
			return records, nil
		},
		OpenBrowser: func(context.Context, *config.Config, trustnet.Selectors) (trustnet.Opener, func(), error) {
			return stubOpener{bad: bad}, func() { *closed = true }, nil
		},
	}
}

func meta() models.RunMeta {
	return models.NewRunMeta(time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC))
}

func TestStages(t *testing.T) {
	assert.Equal(t, []string{"config", "input", "browser", "sectors", "funds", "normalize_write"}, Stages())
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	records := []models.FundRecord{{URL: "https://x/a"}, {URL: "https://x/bad"}, {URL: "https://x/b", Hold: true}}
	closed := false
	r := testRunner(records, map[string]bool{"https://x/bad": true}, &closed)

	res, err := r.Run(context.Background(), cfg, meta())
	require.NoError(t, err)

	assert.True(t, closed)
	assert.Equal(t, 3, res.Records)
	assert.Len(t, res.Sectors, 1)
	assert.Len(t, res.Funds, 2)
	assert.Equal(t, []string{"https://x/bad"}, res.Failed)
	assert.Equal(t, 1, res.Stats.Failed)
	assert.Equal(t, 1, res.Stats.SectorRows)
	assert.NoError(t, res.WriteErr)

	assert.Equal(t, filepath.Join(cfg.OutputDir, "20261018_funds.csv"), res.Outputs.FundsCSV)
	for _, f := range res.Outputs.Files() {
		_, err := os.Stat(f)
		assert.NoError(t, err, f)
	}
}

func TestRunInputFailureAborts(t *testing.T) {
	cfg := testConfig(t)
	opened := false
	r := &Runner{
		LoadInput: func(context.Context, config.InputConfig) ([]models.FundRecord, error) {
			return nil, models.NewScrapeError(models.ErrCodeCredentialsMissing, "no creds", nil)
		},
		OpenBrowser: func(context.Context, *config.Config, trustnet.Selectors) (trustnet.Opener, func(), error) {
			opened = true
			return stubOpener{}, nil, nil
		},
	}
	_, err := r.Run(context.Background(), cfg, meta())
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.ErrCodeCredentialsMissing))
	assert.True(t, strings.HasPrefix(err.Error(), "input: "))
	assert.False(t, opened)
}

func TestRunInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Input.Path = ""
	_, err := (&Runner{}).Run(context.Background(), cfg, meta())
	assert.True(t, models.HasCode(err, models.ErrCodeInvalidInput))
}

func TestRunBrowserFailureAborts(t *testing.T) {
	cfg := testConfig(t)
	r := &Runner{
		LoadInput: func(context.Context, config.InputConfig) ([]models.FundRecord, error) { return nil, nil },
		OpenBrowser: func(context.Context, *config.Config, trustnet.Selectors) (trustnet.Opener, func(), error) {
			return nil, nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "launch", nil)
		},
	}
	_, err := r.Run(context.Background(), cfg, meta())
	assert.True(t, models.HasCode(err, models.ErrCodeBrowserCrash))
}

func TestRunWriteFallbackIsNotFatal(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.OutputDir, "20261018_funds.csv"), 0o755))
	closed := false

	res, err := testRunner([]models.FundRecord{{URL: "https://x/a"}}, nil, &closed).Run(context.Background(), cfg, meta())
	require.NoError(t, err)
	assert.Error(t, res.WriteErr)
	assert.True(t, res.Outputs.FundsFallback)
}

func TestRunPublishesAndRecordsHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Publish = config.PublishConfig{GCSBucket: "bucket", GCSPrefix: "p"}
	cfg.HistoryDB = filepath.Join(t.TempDir(), "runs.db")
	closed := false
	r := testRunner([]models.FundRecord{{URL: "https://x/a"}}, nil, &closed)

	var published []string
	r.Publish = func(_ context.Context, pc config.PublishConfig, runDate string, files []string) ([]string, error) {
		assert.Equal(t, "bucket", pc.GCSBucket)
		assert.Equal(t, "20261018", runDate)
		published = files
		return nil, errors.New("permission denied")
	}

	res, err := r.Run(context.Background(), cfg, meta())
	require.NoError(t, err)
	assert.Len(t, published, 4)
	assert.Empty(t, res.Published)

	runs, err := RecentRuns(context.Background(), cfg.HistoryDB, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.Meta.RunID, runs[0].RunID)
	assert.Equal(t, 1, runs[0].Stats.ScrapedOK)

	var buf bytes.Buffer
	PrintHistory(&buf, runs)
	assert.Contains(t, buf.String(), "Recent runs")
	assert.Contains(t, buf.String(), res.Meta.RunID)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Runner{}).Run(ctx, testConfig(t), meta())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrintSummary(t *testing.T) {
	res := &Result{
		Meta:    models.RunMeta{RunID: "run-1", RunDate: "20261018"},
		Records: 3,
		Failed:  []string{"https://x/bad"},
		Stats:   models.NewRunStats(3, 2, 1),
		Outputs: export.Outputs{FundsCSV: "/out/20261018_funds.csv"},
	}
	var buf bytes.Buffer
	PrintSummary(&buf, res)
	out := buf.String()

	assert.Contains(t, out, "Run 20261018 (run-1)")
	assert.Contains(t, out, "33.3%")
	assert.Contains(t, out, "https://x/bad")
	assert.Contains(t, out, "/out/20261018_funds.csv")
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	PrintHistory(&buf, nil)
	assert.Empty(t, buf.String())

	PrintHistory(&buf, []history.Run{
		{RunID: "run-2", RunDate: "20261018", Stats: models.NewRunStats(4, 3, 1)},
		{RunID: "run-1", RunDate: "20261017", Stats: models.NewRunStats(4, 4, 0)},
	})
	out := buf.String()
	assert.Contains(t, out, "run-2")
	assert.Contains(t, out, "20261017")
	assert.Contains(t, out, "25.0%")
}

func TestEvent(t *testing.T) {
	m := models.RunMeta{RunID: "run-1", RunDate: "20261018"}

	ev := Event(m, &Result{Failed: []string{"u"}, Stats: models.NewRunStats(1, 0, 1)}, nil)
	assert.Equal(t, "run.completed", ev.Type)
	assert.Equal(t, "run-1", ev.RunID)
	sum := ev.Data.(RunSummary)
	assert.Equal(t, []string{"u"}, sum.Failed)
	assert.Empty(t, sum.Error)

	ev = Event(m, nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "launch", nil))
	assert.Equal(t, "run.failed", ev.Type)
	sum = ev.Data.(RunSummary)
	assert.Equal(t, models.ErrCodeBrowserCrash, sum.Code)
	assert.Contains(t, sum.Error, "launch")
}
