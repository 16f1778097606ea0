// Package export writes run results to disk in fixed tabular schemas and
// optionally publishes them to Cloud Storage.
package export

import (
	"strconv"

	"github.com/use-agent/fundscrape/models"
)

// FundsColumns is the fund output schema, in order.
var FundsColumns = []string{
	"date", "fundName", "Quartile", "FERisk",
	"3m", "6m", "1y", "3y", "5y",
	"url", "Hold", "Holding%",
	"Sector", "SectorUrl", "price",
}

// SectorsColumns is the sector output schema, in order.
var SectorsColumns = []string{
	"date", "sectorName", "1m", "3m", "6m", "1y", "3y", "5y",
}

// fundCells renders a fund row in FundsColumns order. Absent values are
// empty strings.
func fundCells(r models.FundResult) []string {
	return []string{
		r.Timestamp,
		str(r.FundName),
		integer(r.Quartile),
		integer(r.RiskScore),
		float(r.Performance.M3),
		float(r.Performance.M6),
		float(r.Performance.Y1),
		float(r.Performance.Y3),
		float(r.Performance.Y5),
		r.URL,
		boolean(r.Hold),
		float(r.HoldingPct),
		str(r.Sector),
		str(r.SectorURL),
		str(r.Price),
	}
}

func sectorCells(r models.SectorResult) []string {
	return []string{
		r.Timestamp,
		r.Name,
		float(r.M1),
		float(r.M3),
		float(r.M6),
		float(r.Y1),
		float(r.Y3),
		float(r.Y5),
	}
}

func str(f models.Field[string]) string { return f.Or("") }

func integer(f models.Field[int]) string {
	if !f.Valid {
		return ""
	}
	return strconv.Itoa(f.Value)
}

func float(f models.Field[float64]) string {
	if !f.Valid {
		return ""
	}
	return strconv.FormatFloat(f.Value, 'f', 2, 64)
}

func boolean(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
