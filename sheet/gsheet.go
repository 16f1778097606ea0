package sheet

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"regexp"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/use-agent/fundscrape/models"
)

// Credential sources for the cloud path, checked in this order.
const (
	EnvServiceAccountJSON = "GOOGLE_SERVICE_ACCOUNT_JSON"
	EnvCredentialsFile    = "GOOGLE_APPLICATION_CREDENTIALS"
)

const spreadsheetMIME = "application/vnd.google-apps.spreadsheet"

var scopes = []string{
	sheets.SpreadsheetsReadonlyScope,
	drive.DriveReadonlyScope,
}

var reSpreadsheetID = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// SpreadsheetID extracts the document id from a Sheets share URL.
func SpreadsheetID(shareURL string) (string, error) {
	m := reSpreadsheetID.FindStringSubmatch(shareURL)
	if m == nil {
		return "", models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("not a spreadsheet URL: %q", shareURL), nil)
	}
	return m[1], nil
}

// CredentialsOption builds the client option for the service account named
// by the environment. An inline JSON blob wins over a file path.
func CredentialsOption() (option.ClientOption, error) {
	if blob := os.Getenv(EnvServiceAccountJSON); blob != "" {
		return option.WithCredentialsJSON([]byte(blob)), nil
	}
	if path := os.Getenv(EnvCredentialsFile); path != "" {
		if _, err := os.Stat(path); err == nil {
			return option.WithCredentialsFile(path), nil
		}
	}
	return nil, models.NewScrapeError(models.ErrCodeCredentialsMissing,
		fmt.Sprintf("google credentials not provided; set %s or %s", EnvCredentialsFile, EnvServiceAccountJSON), nil)
}

// cloudReader reads tracking sheets from Google Sheets and Drive.
type cloudReader struct {
	opts []option.ClientOption
}

// readSheetValues fetches the whole worksheet as strings.
func (c *cloudReader) readSheetValues(ctx context.Context, spreadsheetID, sheet string) ([][]string, error) {
	svc, err := sheets.NewService(ctx, c.opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: create client: %w", err)
	}
	resp, err := svc.Spreadsheets.Values.Get(spreadsheetID, quoteSheet(sheet)).
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		if isNotFound(err) {
			return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
				fmt.Sprintf("worksheet %q not found in spreadsheet %s", sheet, spreadsheetID), err)
		}
		return nil, fmt.Errorf("sheets: read %s/%s: %w", spreadsheetID, sheet, err)
	}

	rows := make([][]string, len(resp.Values))
	for i, r := range resp.Values {
		row := make([]string, len(r))
		for j, v := range r {
			row[j] = fmt.Sprint(v)
		}
		rows[i] = row
	}
	return rows, nil
}

// readDriveFile resolves a Drive file id. Native spreadsheets go through
// the Sheets API; uploaded workbooks are downloaded and parsed locally.
func (c *cloudReader) readDriveFile(ctx context.Context, fileID, sheet string) ([][]string, error) {
	svc, err := drive.NewService(ctx, c.opts...)
	if err != nil {
		return nil, fmt.Errorf("drive: create client: %w", err)
	}
	meta, err := svc.Files.Get(fileID).
		Fields("id", "name", "mimeType").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		if isNotFound(err) {
			return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
				fmt.Sprintf("drive file %s not found", fileID), err)
		}
		return nil, fmt.Errorf("drive: stat %s: %w", fileID, err)
	}
	if meta.MimeType == spreadsheetMIME {
		return c.readSheetValues(ctx, fileID, sheet)
	}

	resp, err := svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("drive: download %s: %w", fileID, err)
	}
	defer resp.Body.Close()
	return ReadExcel(resp.Body, sheet)
}

func quoteSheet(name string) string {
	return "'" + name + "'"
}

func isNotFound(err error) bool {
	if gerr, ok := err.(*googleapi.Error); ok {
		return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusBadRequest
	}
	return false
}
