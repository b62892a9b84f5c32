package xlsx

import (
	"errors"
	"fmt"
	"os"

	"github.com/JonMunkholm/datarefinery/internal/tabular"
)

var failedListHeader = []string{"filename", "error", "timestamp"}

// FailedEntry is one row of the failed list.
type FailedEntry struct {
	Filename  string
	Error     string
	Timestamp string
}

// ReadFailedList returns the workbook names recorded in the failed list at
// path. A missing file is an empty list.
func ReadFailedList(path string) ([]string, error) {
	t, err := tabular.ReadCSV(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read failed list: %w", err)
	}

	col, ok := tabular.MakeHeaderIndex(t.Headers).Lookup("filename")
	if !ok {
		return nil, nil
	}

	var names []string
	for _, row := range t.Rows {
		if row[col] != "" {
			names = append(names, row[col])
		}
	}
	return names, nil
}

// WriteFailedList replaces the failed list at path. An empty entries slice
// leaves a header-only file, which reads back as no failures.
func WriteFailedList(path string, entries []FailedEntry) error {
	t := &tabular.Table{Headers: failedListHeader}
	for _, e := range entries {
		t.Rows = append(t.Rows, []string{e.Filename, e.Error, e.Timestamp})
	}
	if err := tabular.WriteCSV(path, t, tabular.WriteOptions{}); err != nil {
		return fmt.Errorf("write failed list: %w", err)
	}
	return nil
}
