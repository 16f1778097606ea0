package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/use-agent/fundscrape/models"
)

// Outputs lists the files a write produced. Empty paths were not written.
type Outputs struct {
	FundsCSV       string `json:"funds_csv,omitempty"`
	FundsParquet   string `json:"funds_parquet,omitempty"`
	SectorsCSV     string `json:"sectors_csv,omitempty"`
	SectorsParquet string `json:"sectors_parquet,omitempty"`
	// FundsFallback is set when FundsCSV is the Local_ fallback file.
	FundsFallback bool `json:"funds_fallback,omitempty"`
}

// Files returns the written paths in a stable order.
func (o Outputs) Files() []string {
	var out []string
	for _, p := range []string{o.FundsCSV, o.FundsParquet, o.SectorsCSV, o.SectorsParquet} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Write stores funds and sectors under dir as <date>_funds.{csv,parquet}
// and <date>_sectors.{csv,parquet}.
//
// The two kinds are written independently. If the fund pair fails, the
// fund rows are written again as Local_<date>_funds.csv without the index
// column. The returned error aggregates every failure, the fallback's
// included; Outputs always reflects what did land.
func Write(dir, runDate string, funds []models.FundResult, sectors []models.SectorResult) (Outputs, error) {
	var out Outputs
	var errs *multierror.Error

	fundRows := make([][]string, len(funds))
	fundPQ := make([]fundRow, len(funds))
	for i, r := range funds {
		fundRows[i] = fundCells(r)
		fundPQ[i] = toFundRow(r)
	}

	fundsBase := filepath.Join(dir, runDate+"_funds")
	csvPath, pqPath, err := writePair(fundsBase, FundsColumns, fundRows, new(fundRow), fundPQ)
	if err != nil {
		errs = multierror.Append(errs, models.NewScrapeError(models.ErrCodeWriteFailed, "write funds", err))

		fallback := filepath.Join(dir, fmt.Sprintf("Local_%s_funds.csv", runDate))
		if ferr := writeCSV(fallback, FundsColumns, fundRows, false); ferr != nil {
			errs = multierror.Append(errs, models.NewScrapeError(models.ErrCodeWriteFailed, "write funds fallback", ferr))
		} else {
			out.FundsCSV = fallback
			out.FundsFallback = true
		}
		slog.Error("write_failed", "step", "write", "kind", "funds", "fallback", out.FundsCSV, "error", err)
	} else {
		out.FundsCSV, out.FundsParquet = csvPath, pqPath
	}

	sectorRows := make([][]string, len(sectors))
	sectorPQ := make([]sectorRow, len(sectors))
	for i, r := range sectors {
		sectorRows[i] = sectorCells(r)
		sectorPQ[i] = toSectorRow(r)
	}

	sectorsBase := filepath.Join(dir, runDate+"_sectors")
	csvPath, pqPath, err = writePair(sectorsBase, SectorsColumns, sectorRows, new(sectorRow), sectorPQ)
	if err != nil {
		errs = multierror.Append(errs, models.NewScrapeError(models.ErrCodeWriteFailed, "write sectors", err))
		slog.Error("write_failed", "step", "write", "kind", "sectors", "error", err)
	} else {
		out.SectorsCSV, out.SectorsParquet = csvPath, pqPath
	}

	if err := errs.ErrorOrNil(); err != nil {
		return out, err
	}
	slog.Info("outputs_written",
		"step", "write",
		"funds_csv", out.FundsCSV,
		"sectors_csv", out.SectorsCSV,
		"fund_rows", len(funds),
		"sector_rows", len(sectors),
	)
	return out, nil
}

// writePair writes base.csv (indexed) then base.parquet. A parquet failure
// removes both files and fails the pair.
func writePair[T any](base string, header []string, rows [][]string, proto *T, pq []T) (string, string, error) {
	csvPath := base + ".csv"
	pqPath := base + ".parquet"
	if err := writeCSV(csvPath, header, rows, true); err != nil {
		return "", "", fmt.Errorf("%s: %w", csvPath, err)
	}
	if err := writeParquet(pqPath, proto, pq); err != nil {
		for _, p := range []string{pqPath, csvPath} {
			if rmErr := os.Remove(p); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				slog.Debug("remove partial output", "path", p, "error", rmErr)
			}
		}
		return "", "", fmt.Errorf("%s: %w", pqPath, err)
	}
	return csvPath, pqPath, nil
}
