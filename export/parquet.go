package export

import (
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/use-agent/fundscrape/models"
)

// fundRow is the parquet layout of a fund row. Optional columns are
// pointers; nil is written as null.
type fundRow struct {
	Date       string   `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	FundName   *string  `parquet:"name=fundName, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Quartile   *int32   `parquet:"name=Quartile, type=INT32, repetitiontype=OPTIONAL"`
	FERisk     *int32   `parquet:"name=FERisk, type=INT32, repetitiontype=OPTIONAL"`
	M3         *float64 `parquet:"name=3m, type=DOUBLE, repetitiontype=OPTIONAL"`
	M6         *float64 `parquet:"name=6m, type=DOUBLE, repetitiontype=OPTIONAL"`
	Y1         *float64 `parquet:"name=1y, type=DOUBLE, repetitiontype=OPTIONAL"`
	Y3         *float64 `parquet:"name=3y, type=DOUBLE, repetitiontype=OPTIONAL"`
	Y5         *float64 `parquet:"name=5y, type=DOUBLE, repetitiontype=OPTIONAL"`
	URL        string   `parquet:"name=url, type=BYTE_ARRAY, convertedtype=UTF8"`
	Hold       bool     `parquet:"name=Hold, type=BOOLEAN"`
	HoldingPct *float64 `parquet:"name=Holding%, type=DOUBLE, repetitiontype=OPTIONAL"`
	Sector     *string  `parquet:"name=Sector, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	SectorURL  *string  `parquet:"name=SectorUrl, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Price      *string  `parquet:"name=price, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
}

type sectorRow struct {
	Date       string   `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	SectorName string   `parquet:"name=sectorName, type=BYTE_ARRAY, convertedtype=UTF8"`
	M1         *float64 `parquet:"name=1m, type=DOUBLE, repetitiontype=OPTIONAL"`
	M3         *float64 `parquet:"name=3m, type=DOUBLE, repetitiontype=OPTIONAL"`
	M6         *float64 `parquet:"name=6m, type=DOUBLE, repetitiontype=OPTIONAL"`
	Y1         *float64 `parquet:"name=1y, type=DOUBLE, repetitiontype=OPTIONAL"`
	Y3         *float64 `parquet:"name=3y, type=DOUBLE, repetitiontype=OPTIONAL"`
	Y5         *float64 `parquet:"name=5y, type=DOUBLE, repetitiontype=OPTIONAL"`
}

func toFundRow(r models.FundResult) fundRow {
	return fundRow{
		Date:       r.Timestamp,
		FundName:   r.FundName.Ptr(),
		Quartile:   int32Ptr(r.Quartile),
		FERisk:     int32Ptr(r.RiskScore),
		M3:         r.Performance.M3.Ptr(),
		M6:         r.Performance.M6.Ptr(),
		Y1:         r.Performance.Y1.Ptr(),
		Y3:         r.Performance.Y3.Ptr(),
		Y5:         r.Performance.Y5.Ptr(),
		URL:        r.URL,
		Hold:       r.Hold,
		HoldingPct: r.HoldingPct.Ptr(),
		Sector:     r.Sector.Ptr(),
		SectorURL:  r.SectorURL.Ptr(),
		Price:      r.Price.Ptr(),
	}
}

func toSectorRow(r models.SectorResult) sectorRow {
	return sectorRow{
		Date:       r.Timestamp,
		SectorName: r.Name,
		M1:         r.M1.Ptr(),
		M3:         r.M3.Ptr(),
		M6:         r.M6.Ptr(),
		Y1:         r.Y1.Ptr(),
		Y3:         r.Y3.Ptr(),
		Y5:         r.Y5.Ptr(),
	}
}

func int32Ptr(f models.Field[int]) *int32 {
	if !f.Valid {
		return nil
	}
	v := int32(f.Value)
	return &v
}

// writeParquet writes rows to a local SNAPPY-compressed parquet file.
// proto is a pointer to a zero T, used for schema reflection.
func writeParquet[T any](path string, proto *T, rows []T) (err error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fw.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	pw, err := writer.NewParquetWriter(fw, proto, 4)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, row := range rows {
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	// WriteStop can panic on schema mismatches inside the library.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parquet writer panicked during WriteStop: %v", r)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalize parquet: %w", err)
	}
	return nil
}
