package models

// FundRecord is one tracked fund loaded from the input spreadsheet.
type FundRecord struct {
	URL        string
	Hold       bool
	HoldingPct Field[float64]
}

// Performance holds the five trailing-period returns shown on a fund page.
type Performance struct {
	M3 Field[float64]
	M6 Field[float64]
	Y1 Field[float64]
	Y3 Field[float64]
	Y5 Field[float64]
}

// FundResult is one scraped fund row.
type FundResult struct {
	Timestamp   string
	FundName    Field[string]
	Quartile    Field[int]
	RiskScore   Field[int]
	Performance Performance
	URL         string
	Hold        bool
	HoldingPct  Field[float64]
	Sector      Field[string]
	SectorURL   Field[string]
	Price       Field[string]
}

// SectorResult is one row of the sector performance table.
type SectorResult struct {
	Timestamp string
	Name      string
	M1        Field[float64]
	M3        Field[float64]
	M6        Field[float64]
	Y1        Field[float64]
	Y3        Field[float64]
	Y5        Field[float64]
}

// RunStats is write-only telemetry reported at the end of a run.
type RunStats struct {
	TotalURLs   int     `json:"total_urls"`
	ScrapedOK   int     `json:"scraped_ok"`
	Failed      int     `json:"failed"`
	FailureRate float64 `json:"failure_rate"`
	SectorRows  int     `json:"sector_rows"`
}

// NewRunStats computes the failure rate from the raw counters.
func NewRunStats(total, ok, failed int) RunStats {
	denom := ok + failed
	if denom < 1 {
		denom = 1
	}
	return RunStats{
		TotalURLs:   total,
		ScrapedOK:   ok,
		Failed:      failed,
		FailureRate: float64(failed) / float64(denom),
	}
}
