// Package xlsx converts spreadsheet workbooks into per-sheet CSV files and
// keeps the failed-workbook list used to retry conversions.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/datarefinery/internal/tabular"
)

// Retry modes for ConvertFolder.
const (
	RetryAll    = "all"
	RetryFailed = "failed"
)

const statusSuccess = "SUCCESS"

// ErrMarkerFound reports a failure marker inside converted output.
var ErrMarkerFound = errors.New("error_marker")

// Options configures workbook conversion.
type Options struct {
	// FailureMarkers are cell values (e.g. "#REF!") that mark a workbook as
	// failed when found in its output.
	FailureMarkers []string

	// FailureScanColumns limits the marker scan to these header names. Empty
	// scans every column.
	FailureScanColumns []string

	// RetryMode is RetryAll or RetryFailed.
	RetryMode string

	// FailedListPath is where the failed list is read from and written to.
	// Empty disables both.
	FailedListPath string

	LogDetail bool
}

// Result is the outcome for one workbook.
type Result struct {
	File   string
	Sheets int
	Err    error
}

// Failed reports whether conversion failed.
func (r Result) Failed() bool { return r.Err != nil }

// Status renders the result the way the failed list records it.
func (r Result) Status() string {
	if r.Err == nil {
		return statusSuccess
	}
	return "FAILED: " + r.Err.Error()
}

// ConvertWorkbook writes every visible sheet of the workbook at path to
// outDir as <workbook>_<sheet>.csv and returns the number of sheets written.
// When opts has failure markers the written sheets are scanned and the first
// hit is returned as an error wrapping ErrMarkerFound; the CSVs stay on disk.
func ConvertWorkbook(path, outDir string, opts Options) (int, error) {
	f, err := excelize.OpenFile(path, excelize.Options{RawCellValue: true})
	if err != nil {
		return 0, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", outDir, err)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	count := 0
	marker := ""

	for _, sheet := range f.GetSheetList() {
		visible, err := f.GetSheetVisible(sheet)
		if err != nil {
			return count, fmt.Errorf("sheet %s: %w", sheet, err)
		}
		if !visible {
			continue
		}

		rows, err := f.GetRows(sheet)
		if err != nil {
			return count, fmt.Errorf("read sheet %s: %w", sheet, err)
		}

		out := filepath.Join(outDir, stem+"_"+sheet+".csv")
		if err := writeRows(out, rows); err != nil {
			return count, err
		}
		count++

		if marker == "" && len(opts.FailureMarkers) > 0 {
			marker = findMarker(rows, opts.FailureMarkers, opts.FailureScanColumns)
		}
	}

	if marker != "" {
		return count, fmt.Errorf("%w %s", ErrMarkerFound, marker)
	}
	return count, nil
}

func writeRows(path string, rows [][]string) error {
	t := &tabular.Table{}
	if len(rows) > 0 {
		t.Headers = rows[0]
		t.Rows = rows[1:]
	}
	return tabular.WriteCSV(path, t, tabular.WriteOptions{})
}

// findMarker returns the first marker equal to a data cell. The first row is
// the header used to resolve scanColumns.
func findMarker(rows [][]string, markers, scanColumns []string) string {
	if len(rows) == 0 {
		return ""
	}

	var cols []int
	if len(scanColumns) > 0 {
		idx := tabular.MakeHeaderIndex(rows[0])
		for _, name := range scanColumns {
			if i, ok := idx.Lookup(name); ok {
				cols = append(cols, i)
			}
		}
		if len(cols) == 0 {
			return ""
		}
	}

	match := func(v string) string {
		for _, m := range markers {
			if v == m {
				return m
			}
		}
		return ""
	}

	for _, row := range rows[1:] {
		if cols == nil {
			for _, v := range row {
				if m := match(v); m != "" {
					return m
				}
			}
			continue
		}
		for _, c := range cols {
			if c < len(row) {
				if m := match(row[c]); m != "" {
					return m
				}
			}
		}
	}
	return ""
}

// ConvertFolder converts every .xlsx in inDir into outDir/<stem>/, one
// workbook at a time. In RetryFailed mode only workbooks named in the failed
// list are converted. The failed list is rewritten with this run's failures
// when opts.FailedListPath is set.
func ConvertFolder(ctx context.Context, inDir, outDir string, opts Options) ([]Result, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", outDir, err)
	}

	files, err := tabular.ListFiles(inDir, ".xlsx")
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", inDir, err)
	}

	if opts.RetryMode == RetryFailed && opts.FailedListPath != "" {
		failed, err := ReadFailedList(opts.FailedListPath)
		if err != nil {
			return nil, err
		}
		want := make(map[string]bool, len(failed))
		for _, name := range failed {
			want[name] = true
		}
		kept := files[:0]
		for _, f := range files {
			if want[filepath.Base(f)] {
				kept = append(kept, f)
			}
		}
		files = kept
	}

	if len(files) == 0 {
		return nil, nil
	}

	results := make([]Result, 0, len(files))
	var failures []FailedEntry

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		name := filepath.Base(path)
		stem := strings.TrimSuffix(name, filepath.Ext(name))

		n, err := ConvertWorkbook(path, filepath.Join(outDir, stem), opts)
		res := Result{File: name, Sheets: n, Err: err}
		results = append(results, res)

		if res.Failed() {
			failures = append(failures, FailedEntry{
				Filename:  name,
				Error:     res.Status(),
				Timestamp: time.Now().Format("2006-01-02 15:04:05"),
			})
			slog.Warn("workbook conversion failed", "file", name, "error", err)
		} else if opts.LogDetail {
			slog.Info("workbook converted", "file", name, "sheets", n)
		}
	}

	if opts.FailedListPath != "" {
		if err := WriteFailedList(opts.FailedListPath, failures); err != nil {
			return results, err
		}
	}
	return results, nil
}

// RemoveFailedOutputs deletes the output folder and any flattened
// <stem>_*.csv files of each failed workbook.
func RemoveFailedOutputs(outDir string, failed []string) error {
	for _, name := range failed {
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if stem == "" {
			continue
		}

		if err := os.RemoveAll(filepath.Join(outDir, stem)); err != nil {
			return fmt.Errorf("remove output of %s: %w", name, err)
		}

		matches, err := filepath.Glob(filepath.Join(outDir, globEscape(stem)+"_*.csv"))
		if err != nil {
			return err
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove %s: %w", filepath.Base(m), err)
			}
		}
	}
	return nil
}

func globEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}
