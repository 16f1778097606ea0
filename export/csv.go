package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// writeCSV writes header and rows to path. With indexed set, a leading
// unnamed column numbers the rows from 0.
func writeCSV(path string, header []string, rows [][]string, indexed bool) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	if indexed {
		header = append([]string{""}, header...)
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		if indexed {
			row = append([]string{strconv.Itoa(i)}, row...)
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	w.Flush()
	return w.Error()
}
