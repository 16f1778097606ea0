package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/use-agent/fundscrape/models"
)

func sampleFunds() []models.FundResult {
	return []models.FundResult{
		{
			Timestamp: "18/10/26 09:00",
			FundName:  models.Some("Acme Growth"),
			Quartile:  models.Some(1),
			RiskScore: models.Some(95),
			Performance: models.Performance{
				M3: models.Some(1.234), M6: models.Some(-3.4), Y1: models.Some(5.6),
				Y3: models.Some(7.8), Y5: models.Some(9.0),
			},
			URL:        "https://example.com/a",
			Hold:       true,
			HoldingPct: models.Some(12.5),
			Sector:     models.Some("Global"),
			SectorURL:  models.Some("https://example.com/s"),
			Price:      models.Some("187.20"),
		},
		{
			Timestamp: "18/10/26 09:00",
			URL:       "https://example.com/b",
		},
	}
}

func sampleSectors() []models.SectorResult {
	return []models.SectorResult{
		{Timestamp: "18/10/26 09:00", Name: "Global", M1: models.Some(0.5), Y5: models.Some(20.123)},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	out, err := Write(dir, "20261018", sampleFunds(), sampleSectors())
	require.NoError(t, err)

	assert.Equal(t, Outputs{
		FundsCSV:       filepath.Join(dir, "20261018_funds.csv"),
		FundsParquet:   filepath.Join(dir, "20261018_funds.parquet"),
		SectorsCSV:     filepath.Join(dir, "20261018_sectors.csv"),
		SectorsParquet: filepath.Join(dir, "20261018_sectors.parquet"),
	}, out)
	assert.Len(t, out.Files(), 4)

	funds := readCSV(t, out.FundsCSV)
	require.Len(t, funds, 3)
	assert.Equal(t, append([]string{""}, FundsColumns...), funds[0])
	assert.Equal(t, []string{
		"0", "18/10/26 09:00", "Acme Growth", "1", "95",
		"1.23", "-3.40", "5.60", "7.80", "9.00",
		"https://example.com/a", "True", "12.50",
		"Global", "https://example.com/s", "187.20",
	}, funds[1])
	assert.Equal(t, []string{
		"1", "18/10/26 09:00", "", "", "",
		"", "", "", "", "",
		"https://example.com/b", "False", "",
		"", "", "",
	}, funds[2])

	sectors := readCSV(t, out.SectorsCSV)
	assert.Equal(t, append([]string{""}, SectorsColumns...), sectors[0])
	assert.Equal(t, []string{"0", "18/10/26 09:00", "Global", "0.50", "", "", "", "", "20.12"}, sectors[1])
}

func TestWriteSchemaStableWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	out, err := Write(dir, "20261018", nil, nil)
	require.NoError(t, err)

	funds := readCSV(t, out.FundsCSV)
	require.Len(t, funds, 1)
	assert.Len(t, funds[0], len(FundsColumns)+1)

	sectors := readCSV(t, out.SectorsCSV)
	require.Len(t, sectors, 1)
	assert.Len(t, sectors[0], len(SectorsColumns)+1)
}

func TestWriteParquetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	out, err := Write(dir, "20261018", sampleFunds(), sampleSectors())
	require.NoError(t, err)

	fr, err := local.NewLocalFileReader(out.FundsParquet)
	require.NoError(t, err)
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(fundRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	require.EqualValues(t, 2, pr.GetNumRows())
	rows := make([]fundRow, 2)
	require.NoError(t, pr.Read(&rows))

	require.NotNil(t, rows[0].M3)
	assert.InDelta(t, 1.234, *rows[0].M3, 1e-9)
	assert.Equal(t, "Acme Growth", *rows[0].FundName)
	assert.Nil(t, rows[1].FundName)
	assert.Nil(t, rows[1].Quartile)
	assert.False(t, rows[1].Hold)
}

func TestWriteFundsFallback(t *testing.T) {
	dir := t.TempDir()
	// A directory where the fund CSV should go makes the primary write fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "20261018_funds.csv"), 0o755))

	out, err := Write(dir, "20261018", sampleFunds(), sampleSectors())
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.ErrCodeWriteFailed))

	assert.True(t, out.FundsFallback)
	assert.Equal(t, filepath.Join(dir, "Local_20261018_funds.csv"), out.FundsCSV)
	assert.Empty(t, out.FundsParquet)
	assert.NotEmpty(t, out.SectorsCSV)
	assert.NotEmpty(t, out.SectorsParquet)

	fallback := readCSV(t, out.FundsCSV)
	assert.Equal(t, FundsColumns, fallback[0])
	assert.Equal(t, "18/10/26 09:00", fallback[1][0])
}

func TestWriteFundsParquetFailureRemovesPair(t *testing.T) {
	dir := t.TempDir()
	// The CSV lands, then the parquet cannot be created.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "20261018_funds.parquet"), 0o755))

	out, err := Write(dir, "20261018", sampleFunds(), sampleSectors())
	require.Error(t, err)
	assert.True(t, out.FundsFallback)
	assert.Equal(t, filepath.Join(dir, "Local_20261018_funds.csv"), out.FundsCSV)

	_, statErr := os.Stat(filepath.Join(dir, "20261018_funds.csv"))
	assert.ErrorIs(t, statErr, os.ErrNotExist)
	assert.FileExists(t, out.FundsCSV)
}

func TestWriteSectorsFailIndependently(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "20261018_sectors.csv"), 0o755))

	out, err := Write(dir, "20261018", sampleFunds(), sampleSectors())
	require.Error(t, err)
	assert.False(t, out.FundsFallback)
	assert.NotEmpty(t, out.FundsParquet)
	assert.Empty(t, out.SectorsCSV)
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "fundscrape/20261018/20261018_funds.csv",
		ObjectName("/fundscrape/", "20261018", "/tmp/out/20261018_funds.csv"))
	assert.Equal(t, "20261018/x.parquet", ObjectName("", "20261018", "x.parquet"))
	assert.Equal(t, "text/csv", contentType("a.csv"))
	assert.Equal(t, "application/vnd.apache.parquet", contentType("a.parquet"))
}
