package sheet

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/use-agent/fundscrape/models"
)

// ReadExcelFile returns every row of the named worksheet in a workbook on disk.
func ReadExcelFile(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("cannot open workbook %q", path), err)
	}
	defer f.Close()
	return readSheet(f, sheet)
}

// ReadExcel is ReadExcelFile for a workbook held in a stream, such as a
// download from Drive.
func ReadExcel(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "cannot parse workbook", err)
	}
	defer f.Close()
	return readSheet(f, sheet)
}

// readSheet returns raw cell values. Number formats are ignored so a 0.125
// shown as "13%" still reads as 0.125.
func readSheet(f *excelize.File, sheet string) ([][]string, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		var missing excelize.ErrSheetNotExist
		if errors.As(err, &missing) {
			return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
				fmt.Sprintf("worksheet %q not found (have %v)", sheet, f.GetSheetList()), err)
		}
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("cannot read worksheet %q", sheet), err)
	}
	return rows, nil
}
