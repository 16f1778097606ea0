// Package sheet loads the list of tracked funds from a local workbook or a
// cloud spreadsheet.
package sheet

import (
	"context"
	"log/slog"

	"google.golang.org/api/option"

	"github.com/use-agent/fundscrape/config"
	"github.com/use-agent/fundscrape/models"
)

// Load reads the tracking sheet described by in and returns the
// deduplicated fund records in sheet order.
//
// opts replace the environment-derived Google credentials; tests use them to
// point the clients at a fake endpoint.
func Load(ctx context.Context, in config.InputConfig, opts ...option.ClientOption) ([]models.FundRecord, error) {
	overrides := Overrides{URL: in.ColURL, Hold: in.ColHold, Holding: in.ColHolding}

	var (
		rows       [][]string
		err        error
		positional bool
	)
	switch {
	case in.Path != "":
		rows, err = ReadExcelFile(in.Path, in.Sheet)
		positional = true
	case in.UsesCloudSheet():
		if len(opts) == 0 {
			cred, credErr := CredentialsOption()
			if credErr != nil {
				return nil, credErr
			}
			opts = []option.ClientOption{cred, option.WithScopes(scopes...)}
		}
		cr := &cloudReader{opts: opts}
		if in.SheetURL != "" {
			id, idErr := SpreadsheetID(in.SheetURL)
			if idErr != nil {
				return nil, idErr
			}
			rows, err = cr.readSheetValues(ctx, id, in.Sheet)
		} else {
			rows, err = cr.readDriveFile(ctx, in.DriveID, in.Sheet)
		}
	default:
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
			"either an input path or a cloud sheet URL/id must be provided", nil)
	}
	if err != nil {
		return nil, err
	}

	records := Records(rows, in.HeaderRow, overrides, positional)
	slog.Info("input loaded", "step", "input", "rows", len(records))
	return records, nil
}
